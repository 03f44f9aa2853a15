package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IdentifierKind is the structural class of a caller supplied identifier.
type IdentifierKind uint8

const (
	// KindIP is a dotted-quad IPv4 address with every octet in [0,255].
	KindIP IdentifierKind = iota + 1
	// KindAlias is an appliance alias name: uppercase letters, digits and underscores.
	KindAlias
	// KindHostname is everything else.
	KindHostname
	// KindMAC marks a device entry blocked by hardware address. Classify never
	// returns it.
	KindMAC
)

var (
	dottedQuad = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
	aliasName  = regexp.MustCompile(`^[A-Z0-9_]+$`)
)

// String returns a stable string representation of the identifier kind.
func (k IdentifierKind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindAlias:
		return "alias"
	case KindHostname:
		return "hostname"
	case KindMAC:
		return "mac"
	case 0:
		return "unknown"
	default:
		return fmt.Sprintf("IdentifierKind(%d)", k)
	}
}

// MarshalText renders the kind by name in JSON payloads.
func (k IdentifierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText.
func (k *IdentifierKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ip":
		*k = KindIP
	case "alias":
		*k = KindAlias
	case "hostname":
		*k = KindHostname
	case "mac":
		*k = KindMAC
	case "unknown", "":
		*k = 0
	default:
		return fmt.Errorf("unknown identifier kind %q", text)
	}
	return nil
}

// Identifier is a classified caller supplied string.
type Identifier struct {
	Raw   string         // as supplied
	Value string         // trimmed form used for every lookup
	Kind  IdentifierKind // structural class
}

// Classify determines the kind of raw purely from its syntax.
// Checks run in a fixed order and the first match wins: IPv4, alias name, hostname.
func Classify(raw string) (Identifier, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Identifier{}, NewError(ErrKindInvalidIdentifier, "identifier is required")
	}
	id := Identifier{Raw: raw, Value: value}
	switch {
	case IsIPv4(value):
		id.Kind = KindIP
	case IsAliasName(value):
		id.Kind = KindAlias
	default:
		id.Kind = KindHostname
	}
	return id, nil
}

// IsIPv4 reports whether s is four dot-separated decimal groups each in [0,255].
// Leading zeros are accepted as the appliance stores them verbatim.
func IsIPv4(s string) bool {
	m := dottedQuad.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	for _, group := range m[1:] {
		n, err := strconv.Atoi(group)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// IsAliasName reports whether s is a non-empty run of [A-Z0-9_].
func IsAliasName(s string) bool {
	return aliasName.MatchString(s)
}
