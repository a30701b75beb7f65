// Package urlcheck validates outbound URLs before they are dereferenced.
//
// The check is a best-effort SSRF mitigation: it accepts only absolute
// http/https URLs whose host is either a public IP literal or a
// syntactically valid public hostname. Private, loopback, link-local and
// otherwise non-routable destinations are rejected for both IPv4 and IPv6.
//
// The validator inspects the URL string's apparent target only. It does not
// resolve the hostname, so a DNS name that later resolves to a private
// address (DNS rebinding) is not caught here. Callers must treat a passing
// check as advisory, not as proof of safety.
package urlcheck

import (
	"net/netip"
	"net/url"
	"strings"
)

// Validate reports whether rawURL is an absolute http/https URL pointing at
// an apparently public destination. Any parse failure, disallowed scheme,
// non-public address, malformed hostname, or malformed query string yields
// false. Validate never panics and never returns an error — failure is
// fail-closed.
func Validate(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return false
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}

	// A query string that url.Values cannot parse (bad percent-escapes,
	// stray semicolons) fails the whole URL.
	if _, err := url.ParseQuery(u.RawQuery); err != nil {
		return false
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return isPublicAddr(addr)
	}
	return isPublicHostname(host)
}

// isPublicAddr reports whether addr is routable on the public internet.
// IPv4-mapped IPv6 addresses are unmapped first so that ::ffff:127.0.0.1
// is classified like 127.0.0.1.
func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(), // RFC 1918 and IPv6 unique-local fc00::/7
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast():
		return false
	}
	return true
}

// isPublicHostname applies RFC 1123 label syntax plus a minimal TLD policy:
// at least two labels, and a final label that is purely alphabetic and at
// least two characters long. Trailing dots and "localhost" are rejected.
func isPublicHostname(host string) bool {
	if len(host) > 253 || strings.HasSuffix(host, ".") {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	return validTLD(labels[len(labels)-1])
}

// validLabel checks a single hostname label: 1-63 characters, alphanumeric
// or hyphen, no leading or trailing hyphen.
func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !isAlnum(c) && c != '-' {
			return false
		}
	}
	return true
}

// validTLD checks the rightmost label against general TLD syntax: purely
// alphabetic and at least two characters. This rejects numeric pseudo-TLDs
// and one-letter typos without shipping the full IANA registry, so an
// unregistered but well-formed label (example.zzzzzz) still passes; a
// registry lookup would be stricter.
func validTLD(tld string) bool {
	if len(tld) < 2 {
		return false
	}
	for i := 0; i < len(tld); i++ {
		c := tld[i]
		if !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
