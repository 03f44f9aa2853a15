package httpapi

import (
	"context"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
	"github.com/haukened/rr-fwmgr/internal/fw/repos/ratelimit"
	"github.com/haukened/rr-fwmgr/internal/fw/services/clients"
	"github.com/haukened/rr-fwmgr/internal/fw/services/dhcp"
	"github.com/haukened/rr-fwmgr/internal/fw/services/groups"
	"github.com/haukened/rr-fwmgr/internal/fw/services/pending"
)

// Blocklist blocks and unblocks single identifiers and devices and reconciles group
// membership.
type Blocklist interface {
	Block(ctx context.Context, raw string) (domain.BlockResult, error)
	Unblock(ctx context.Context, raw string) (domain.BlockResult, error)
	BlockDevice(ctx context.Context, mac string) (domain.BlockResult, error)
	UnblockDevice(ctx context.Context, mac string) (domain.BlockResult, error)
	ReconcileMembership(ctx context.Context, raw string, desired []string) ([]domain.MembershipChange, error)
}

// Clients reports connected and blocked devices.
type Clients interface {
	Connected(ctx context.Context) ([]domain.Client, error)
	Blocked(ctx context.Context) ([]domain.Client, error)
	BlockedItems(ctx context.Context) ([]domain.BlockedItem, error)
	Overview(ctx context.Context) (clients.Overview, error)
}

// Groups manages aliases as device groups.
type Groups interface {
	List(ctx context.Context) ([]groups.Group, error)
	Get(ctx context.Context, name string) (groups.Group, error)
	Status(ctx context.Context, name string) (domain.GroupBlockStatus, error)
	Create(ctx context.Context, req groups.CreateRequest) (domain.Alias, error)
	Update(ctx context.Context, name string, req groups.UpdateRequest) (domain.Alias, error)
	Delete(ctx context.Context, name string) error
	Block(ctx context.Context, name string) (domain.BlockResult, error)
	Unblock(ctx context.Context, name string) (domain.BlockResult, error)
}

// DHCP manages static reservations.
type DHCP interface {
	List(ctx context.Context) ([]domain.StaticMapping, error)
	Set(ctx context.Context, req dhcp.SetRequest) (domain.StaticMapping, bool, error)
	Delete(ctx context.Context, mac string) error
	ValidateStaticIP(ctx context.Context, ip, current string) (string, error)
}

// Pending reports and applies staged appliance changes.
type Pending interface {
	Pending(ctx context.Context) (pending.Summary, error)
	Apply(ctx context.Context, service string) error
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) ratelimit.Decision
}
