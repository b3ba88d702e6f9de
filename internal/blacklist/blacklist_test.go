package blacklist

import "testing"

func TestSnapshot_ExactHostname(t *testing.T) {
	snap := Compile(&Blacklist{Hostnames: []string{"www.facebook.com"}})

	if !snap.Match("www.facebook.com") {
		t.Error("expected www.facebook.com to be blacklisted")
	}
	if snap.Match("facebook.com") {
		t.Error("expected facebook.com not to be blacklisted without a subdomain rule")
	}
	if !snap.Match("https://www.facebook.com/some/page") {
		t.Error("expected full URL on a blacklisted host to match")
	}
}

func TestSnapshot_SubdomainRule(t *testing.T) {
	snap := Compile(&Blacklist{Subdomains: map[int][]string{2: {"google.com"}}})

	tests := []struct {
		host string
		want bool
	}{
		{"mail.google.com", true},
		{"google.com", true},
		{"a.b.google.com", true},
		{"googleplex.com", false},
		{"google.co.uk", false},
		{"com", false},
	}

	for _, tt := range tests {
		if got := snap.Match(tt.host); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestSnapshot_WildcardEntry(t *testing.T) {
	snap := Compile(&Blacklist{Subdomains: map[int][]string{3: {"*.corp.example.com"}}})

	if !snap.Match("intranet.corp.example.com") {
		t.Error("expected wildcard entry to match a subdomain")
	}
	if snap.Match("example.com") {
		t.Error("host shorter than the rule must not match")
	}
}

func TestSnapshot_ExactURL(t *testing.T) {
	snap := Compile(&Blacklist{URLs: []string{"example.com/private/"}})

	if !snap.Match("https://example.com/private") {
		t.Error("expected exact host+path to match")
	}
	if !snap.Match("example.com/private/") {
		t.Error("expected trailing slash variant to match")
	}
	if snap.Match("example.com/public") {
		t.Error("other paths must not match")
	}
	if snap.Match("example.com") {
		t.Error("host alone must not match a URL entry")
	}

	for _, u := range []string{
		"example.com/private?next=https://other.org",
		"https://example.com/private?next=https://other.org",
		"example.com/private?x=1",
		"example.com/private?u=https%3A%2F%2Fother.org",
	} {
		if !snap.Match(u) {
			t.Errorf("expected %q to match despite its query", u)
		}
	}
}

func TestSnapshot_Empty(t *testing.T) {
	for _, b := range []*Blacklist{nil, {}, {Subdomains: map[int][]string{2: {}}}} {
		snap := Compile(b)
		if !snap.Empty() {
			t.Errorf("expected empty snapshot for %+v", b)
		}
		for _, host := range []string{"example.com", "www.facebook.com", ""} {
			if snap.Match(host) {
				t.Errorf("empty blacklist matched %q", host)
			}
		}
	}
}

func TestSnapshot_CaseInsensitive(t *testing.T) {
	snap := Compile(&Blacklist{Hostnames: []string{"Example.COM"}})
	if !snap.Match("EXAMPLE.com") {
		t.Error("expected case-insensitive hostname match")
	}
}
