// Package blacklist decides whether a page must be excluded from all discussion lookups.
package blacklist

import (
	"strings"

	"github.com/ppiankov/discussed/internal/urlnorm"
)

// Blacklist is the serialized form of the exclusion rules
type Blacklist struct {
	// Hostnames are matched exactly (e.g., "www.facebook.com")
	Hostnames []string `json:"hostnames" yaml:"hostnames"`
	// URLs are host+path entries matched exactly (e.g., "example.com/private")
	URLs []string `json:"urls" yaml:"urls"`
	// Subdomains maps a label count to suffixes; an entry for *.x.y.z lives under 3
	Subdomains map[int][]string `json:"subdomains" yaml:"subdomains"`
}

// Snapshot is the compiled, read-only form of a Blacklist
type Snapshot struct {
	hostnames  map[string]struct{}
	urls       map[string]struct{}
	subdomains map[int]map[string]struct{}
	lengths    []int
}

// Compile builds set-based lookups from b. A nil Blacklist compiles to an empty snapshot.
func Compile(b *Blacklist) *Snapshot {
	s := &Snapshot{
		hostnames:  make(map[string]struct{}),
		urls:       make(map[string]struct{}),
		subdomains: make(map[int]map[string]struct{}),
	}
	if b == nil {
		return s
	}

	for _, h := range b.Hostnames {
		if h = normalizeEntry(h); h != "" {
			s.hostnames[h] = struct{}{}
		}
	}
	for _, u := range b.URLs {
		if u = normalizeEntry(u); u != "" {
			s.urls[u] = struct{}{}
		}
	}
	for n, suffixes := range b.Subdomains {
		if n <= 0 {
			continue
		}
		set := make(map[string]struct{}, len(suffixes))
		for _, suffix := range suffixes {
			suffix = strings.TrimPrefix(normalizeEntry(suffix), "*.")
			if suffix != "" {
				set[suffix] = struct{}{}
			}
		}
		if len(set) == 0 {
			continue
		}
		s.subdomains[n] = set
		s.lengths = append(s.lengths, n)
	}

	return s
}

// Empty reports whether the snapshot holds no rules at all
func (s *Snapshot) Empty() bool {
	return len(s.hostnames) == 0 && len(s.urls) == 0 && len(s.subdomains) == 0
}

// Match reports whether hostOrURL is excluded.
// Checks run cheapest first: exact hostname, exact host+path, then subdomain suffixes.
func (s *Snapshot) Match(hostOrURL string) bool {
	host, hostPath := split(hostOrURL)
	if host == "" {
		return false
	}

	if _, ok := s.hostnames[host]; ok {
		return true
	}

	if _, ok := s.urls[hostPath]; ok {
		return true
	}

	if len(s.lengths) == 0 {
		return false
	}
	labels := strings.Split(host, ".")
	for _, n := range s.lengths {
		if n > len(labels) {
			continue
		}
		suffix := strings.Join(labels[len(labels)-n:], ".")
		if _, ok := s.subdomains[n][suffix]; ok {
			return true
		}
	}

	return false
}

// split extracts the lowercase hostname and host+path of a hostname or URL
func split(hostOrURL string) (string, string) {
	parsed, err := urlnorm.Parse(hostOrURL)
	if err != nil {
		return "", ""
	}
	host := strings.ToLower(parsed.Hostname())
	path := strings.TrimSuffix(parsed.Path, "/")
	return host, host + path
}

func normalizeEntry(entry string) string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	entry = strings.TrimPrefix(entry, "https://")
	entry = strings.TrimPrefix(entry, "http://")
	return strings.TrimSuffix(entry, "/")
}
