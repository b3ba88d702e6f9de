// Package urlnorm canonicalizes page URLs before blacklist checks and provider queries.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for input that cannot be parsed into a URL with a host
var ErrInvalidURL = errors.New("invalid url")

// Normalized holds the two canonical forms of a page URL
type Normalized struct {
	SiteURL    string `json:"site_url"`    // Hostname only
	CleanedURL string `json:"cleaned_url"` // No scheme, fragment or leading "www."
}

// Normalizer strips proxy and tracking artifacts from URLs
type Normalizer struct {
	proxyHosts map[string]struct{}
}

// New creates a normalizer that unwraps the given institutional proxy suffixes
func New(proxyHosts []string) *Normalizer {
	hosts := make(map[string]struct{}, len(proxyHosts))
	for _, h := range proxyHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts[h] = struct{}{}
		}
	}
	return &Normalizer{proxyHosts: hosts}
}

// Normalize returns the site URL and cleaned URL for rawURL
func (n *Normalizer) Normalize(rawURL string) (Normalized, error) {
	parsed, err := Parse(rawURL)
	if err != nil {
		return Normalized{}, err
	}

	parsed = n.unproxy(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	cleaned := parsed.String()
	cleaned = strings.TrimPrefix(cleaned, parsed.Scheme+"://")
	for strings.HasPrefix(cleaned, "www.") {
		cleaned = strings.TrimPrefix(cleaned, "www.")
	}

	return Normalized{
		SiteURL:    parsed.Hostname(),
		CleanedURL: cleaned,
	}, nil
}

// Unproxy rewrites a known institutional-proxy URL back to its real origin.
// URLs without a matching proxy suffix are returned unchanged.
func (n *Normalizer) Unproxy(rawURL string) (string, error) {
	parsed, err := Parse(rawURL)
	if err != nil {
		return "", err
	}
	unwrapped := n.unproxy(parsed)
	if unwrapped == parsed {
		return rawURL, nil
	}
	return unwrapped.String(), nil
}

// unproxy returns a new URL when the host is a known proxy, or u itself otherwise
func (n *Normalizer) unproxy(u *url.URL) *url.URL {
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) < 2 {
		return u
	}

	suffix := strings.ToLower(strings.Join(labels[1:], "."))
	if _, ok := n.proxyHosts[suffix]; !ok {
		return u
	}

	trueDomain := strings.ReplaceAll(labels[0], "-", ".")
	return &url.URL{
		Scheme:   u.Scheme,
		Host:     trueDomain,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}
}

// Parse accepts absolute URLs and scheme-less "host/path" forms.
// Scheme-less input is read as https, even when its query holds another URL.
func Parse(rawURL string) (*url.URL, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !hasScheme(raw) {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	if strings.ContainsAny(parsed.Hostname(), " \t") {
		return nil, fmt.Errorf("%w: malformed host in %q", ErrInvalidURL, rawURL)
	}
	return parsed, nil
}

// hasScheme reports whether raw starts with "scheme://"
func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i <= 0 {
		return false
	}
	for j, r := range raw[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
