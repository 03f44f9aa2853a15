package clients

import (
	"context"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// ApplianceReader is the read-only view of the appliance the client views need.
type ApplianceReader interface {
	ListAliases(ctx context.Context) ([]domain.Alias, error)
	ListLeases(ctx context.Context) ([]domain.Lease, error)
	ListARP(ctx context.Context) ([]domain.ARPEntry, error)
	SystemInfo(ctx context.Context) (domain.SystemInfo, error)
}

// BlockedSets extracts the blocklist from an alias snapshot.
type BlockedSets interface {
	BlockedSetFrom(aliases []domain.Alias) (domain.BlockedSet, error)
}
