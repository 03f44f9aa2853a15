package blocklist

import (
	"context"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// ApplianceClient is the capability set the reconciler needs from the appliance.
// Every call returns a full snapshot; nothing is cached between calls.
type ApplianceClient interface {
	// ListAliases returns every alias, including the blocklist alias itself.
	ListAliases(ctx context.Context) ([]domain.Alias, error)

	// ListLeases returns the current DHCP lease table.
	ListLeases(ctx context.Context) ([]domain.Lease, error)

	// ReplaceAlias overwrites the full address and detail arrays of one alias.
	// The appliance has no partial update for alias members.
	ReplaceAlias(ctx context.Context, update domain.AliasUpdate) error

	// ApplySubsystem activates staged changes for the named subsystem.
	ApplySubsystem(ctx context.Context, name string) error
}
