package domain

// GroupStatus is the derived block state of an alias.
type GroupStatus string

const (
	GroupStatusBlocked   GroupStatus = "blocked"
	GroupStatusPartial   GroupStatus = "partial"
	GroupStatusUnblocked GroupStatus = "unblocked"
	GroupStatusUnknown   GroupStatus = "unknown"
)

// GroupBlockStatus is computed per request, never stored.
type GroupBlockStatus struct {
	GroupBlocked     bool        `json:"groupBlocked"`
	IndividualBlocks int         `json:"individualBlocks"`
	TotalMembers     int         `json:"totalMembers"`
	Status           GroupStatus `json:"status"`
}

// UnknownGroupStatus is returned when the blocked set could not be read.
func UnknownGroupStatus() GroupBlockStatus {
	return GroupBlockStatus{Status: GroupStatusUnknown}
}

// ComputeGroupStatus derives the block state of group from a blocked set snapshot.
// The group's own name in the set wins over member counts.
func ComputeGroupStatus(set BlockedSet, group string, members []string) GroupBlockStatus {
	st := GroupBlockStatus{
		GroupBlocked: set.Contains(group),
		TotalMembers: len(members),
	}
	for _, m := range members {
		if set.Contains(m) {
			st.IndividualBlocks++
		}
	}
	switch {
	case st.GroupBlocked:
		st.Status = GroupStatusBlocked
	case st.IndividualBlocks > 0:
		st.Status = GroupStatusPartial
	default:
		st.Status = GroupStatusUnblocked
	}
	return st
}
