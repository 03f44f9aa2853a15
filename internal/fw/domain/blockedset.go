package domain

import (
	"strings"
	"time"
)

// BlockEntry is one blocklist member and its annotation. The appliance stores the two
// as parallel arrays; keeping them in one record makes positional drift impossible.
type BlockEntry struct {
	Value  string `json:"value"`
	Detail string `json:"detail"`
}

// BlockedSet is a snapshot of the blocklist alias.
type BlockedSet struct {
	AliasID     int
	Name        string
	Description string
	Entries     []BlockEntry
}

// BlockedSetFromAlias pairs the alias address and detail arrays by position.
// Blank addresses are dropped together with their detail; missing details become "".
func BlockedSetFromAlias(a Alias) BlockedSet {
	set := BlockedSet{
		AliasID:     a.ID,
		Name:        a.Name,
		Description: a.Description,
		Entries:     make([]BlockEntry, 0, len(a.Addresses)),
	}
	for i, addr := range a.Addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		var detail string
		if i < len(a.Details) {
			detail = a.Details[i]
		}
		set.Entries = append(set.Entries, BlockEntry{Value: addr, Detail: detail})
	}
	return set
}

// Flatten returns the parallel address and detail arrays for the appliance.
// Both slices always have the same length.
func (s BlockedSet) Flatten() (addresses, details []string) {
	addresses = make([]string, len(s.Entries))
	details = make([]string, len(s.Entries))
	for i, e := range s.Entries {
		addresses[i] = e.Value
		details[i] = e.Detail
	}
	return addresses, details
}

// Update builds the full replace payload for this set.
func (s BlockedSet) Update() AliasUpdate {
	addresses, details := s.Flatten()
	return AliasUpdate{ID: s.AliasID, Name: s.Name, Addresses: addresses, Details: details}
}

// Values returns the blocked values in order.
func (s BlockedSet) Values() []string {
	values, _ := s.Flatten()
	return values
}

// Len returns the number of entries.
func (s BlockedSet) Len() int { return len(s.Entries) }

// IndexOf returns the position of value, or -1. Matching is exact, as the appliance does.
func (s BlockedSet) IndexOf(value string) int {
	for i, e := range s.Entries {
		if e.Value == value {
			return i
		}
	}
	return -1
}

// IndexOfMAC returns the position of the first entry holding mac, comparing
// hardware addresses ignoring case and separator style, or -1.
func (s BlockedSet) IndexOfMAC(mac string) int {
	want, err := NormalizeMAC(mac)
	if err != nil {
		return -1
	}
	for i, e := range s.Entries {
		if got, err := NormalizeMAC(e.Value); err == nil && got == want {
			return i
		}
	}
	return -1
}

// Contains reports whether value is blocked.
func (s BlockedSet) Contains(value string) bool {
	return value != "" && s.IndexOf(value) >= 0
}

// WithEntry returns a copy with value appended and annotated with the block time.
// The receiver is not modified.
func (s BlockedSet) WithEntry(value string, at time.Time) BlockedSet {
	out := s
	out.Entries = make([]BlockEntry, len(s.Entries), len(s.Entries)+1)
	copy(out.Entries, s.Entries)
	out.Entries = append(out.Entries, BlockEntry{Value: value, Detail: BlockAnnotation(at)})
	return out
}

// WithoutIndex returns a copy without the entry at i. Out of range indexes return an
// unchanged copy.
func (s BlockedSet) WithoutIndex(i int) BlockedSet {
	out := s
	out.Entries = make([]BlockEntry, 0, len(s.Entries))
	for j, e := range s.Entries {
		if j != i {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// BlockAnnotation is the detail text written next to a newly blocked value.
func BlockAnnotation(at time.Time) string {
	return "Blocked on " + at.UTC().Format(time.RFC3339)
}

// MemberAnnotation is the detail text written next to a member added by reconciliation.
func MemberAnnotation(at time.Time) string {
	return "Added on " + at.UTC().Format(time.RFC3339)
}
