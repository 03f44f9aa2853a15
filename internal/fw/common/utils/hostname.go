package utils

import (
	"strings"

	"golang.org/x/net/idna"
)

// hostnameProfile maps and punycodes labels the way a resolver would, but keeps
// underscores and other non-LDH characters that DHCP clients routinely send.
var hostnameProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.Transitional(false),
)

// CanonicalHostname returns a hostname in comparable form:
// - Trimmed of surrounding whitespace
// - No trailing dot
// - Lowercased, with internationalized labels converted to their ASCII (punycode) form
//
// Names the IDNA profile rejects are only lowercased.
func CanonicalHostname(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	if name == "" {
		return ""
	}
	ascii, err := hostnameProfile.ToASCII(name)
	if err != nil || ascii == "" {
		return strings.ToLower(name)
	}
	return strings.ToLower(ascii)
}

// SameHostname reports whether a and b name the same host after canonicalization.
// Empty names never match.
func SameHostname(a, b string) bool {
	ca := CanonicalHostname(a)
	return ca != "" && ca == CanonicalHostname(b)
}
