package domain

import "strings"

// Alias types reported by the appliance.
const (
	AliasTypeHost    = "host"
	AliasTypeNetwork = "network"
	AliasTypePort    = "port"
	AliasTypeURL     = "url"
)

// Alias is a named, ordered member list used as a firewall rule target.
// Members may be IPs, hostnames or other alias names.
type Alias struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"descr"`
	Addresses   []string `json:"address"`
	Details     []string `json:"detail"`
}

// Members returns the non-blank addresses in order.
func (a Alias) Members() []string {
	members := make([]string, 0, len(a.Addresses))
	for _, addr := range a.Addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			members = append(members, addr)
		}
	}
	return members
}

// HasMember reports whether member is in the alias, ignoring case.
func (a Alias) HasMember(member string) bool {
	for _, addr := range a.Addresses {
		if strings.EqualFold(strings.TrimSpace(addr), member) {
			return true
		}
	}
	return false
}

// WithMember returns the replace payload with member appended.
func (a Alias) WithMember(member, detail string) AliasUpdate {
	set := aliasEntries(a)
	set = append(set, BlockEntry{Value: member, Detail: detail})
	return entriesUpdate(a, set)
}

// WithoutMember returns the replace payload with every case-insensitive match removed.
func (a Alias) WithoutMember(member string) AliasUpdate {
	kept := make([]BlockEntry, 0, len(a.Addresses))
	for _, e := range aliasEntries(a) {
		if !strings.EqualFold(e.Value, member) {
			kept = append(kept, e)
		}
	}
	return entriesUpdate(a, kept)
}

func aliasEntries(a Alias) []BlockEntry {
	return BlockedSetFromAlias(a).Entries
}

func entriesUpdate(a Alias, entries []BlockEntry) AliasUpdate {
	set := BlockedSet{AliasID: a.ID, Name: a.Name, Entries: entries}
	return set.Update()
}

// AliasUpdate replaces the full member list of an existing alias.
// A nil Description leaves the appliance's description untouched.
type AliasUpdate struct {
	ID          int
	Name        string
	Addresses   []string
	Details     []string
	Description *string
}

// FindAlias returns the alias named name (exact match) from a snapshot.
func FindAlias(aliases []Alias, name string) (Alias, bool) {
	for _, a := range aliases {
		if a.Name == name {
			return a, true
		}
	}
	return Alias{}, false
}
