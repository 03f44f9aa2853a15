package groups

import (
	"context"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// ApplianceClient is the alias CRUD surface of the appliance. Writes are staged
// until the firewall subsystem is applied.
type ApplianceClient interface {
	ListAliases(ctx context.Context) ([]domain.Alias, error)
	CreateAlias(ctx context.Context, alias domain.Alias) (domain.Alias, error)
	ReplaceAlias(ctx context.Context, update domain.AliasUpdate) error
	DeleteAlias(ctx context.Context, id int) error
}

// Blocklist is the part of the blocklist reconciler groups delegate to.
type Blocklist interface {
	Block(ctx context.Context, raw string) (domain.BlockResult, error)
	Unblock(ctx context.Context, raw string) (domain.BlockResult, error)
	GroupBlockStatus(ctx context.Context, group string, members []string) domain.GroupBlockStatus
	GroupStatuses(ctx context.Context, aliases []domain.Alias) map[string]domain.GroupBlockStatus
	IsProtected(a domain.Alias) bool
	Exclusive(fn func() error) error
}
