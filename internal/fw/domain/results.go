package domain

// Messages reported by block and unblock. Callers distinguish no-ops by message.
const (
	MsgAlreadyBlocked = "already blocked"
	MsgBlocked        = "blocked successfully"
	MsgNotBlocked     = "not in blocked list"
	MsgUnblocked      = "unblocked successfully"
)

// BlockResult is the outcome of a block or unblock call.
type BlockResult struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	BlockableValue string         `json:"blockableValue"`
	Kind           IdentifierKind `json:"type"`
	Changed        bool           `json:"changed"`
}

// MembershipAction is what membership reconciliation did to one alias.
type MembershipAction string

const (
	MembershipAdded     MembershipAction = "added"
	MembershipRemoved   MembershipAction = "removed"
	MembershipUnchanged MembershipAction = "unchanged"
	MembershipSkipped   MembershipAction = "skipped"
)

// MembershipChange reports the action taken for one group.
type MembershipChange struct {
	Group  string           `json:"group"`
	Action MembershipAction `json:"action"`
}

// BlockedItem is a blocked entry enriched for display.
type BlockedItem struct {
	Value       string         `json:"value"`
	Type        IdentifierKind `json:"type"`
	Detail      string         `json:"detail,omitempty"`
	Hostname    string         `json:"hostname,omitempty"`
	MAC         *string        `json:"mac,omitempty"`
	Description string         `json:"description,omitempty"`
	MemberCount int            `json:"memberCount,omitempty"`
}
