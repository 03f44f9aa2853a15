package dhcp

import (
	"context"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// ApplianceClient manages DHCP static reservations on the appliance. Writes are
// staged until the dhcp subsystem is applied.
type ApplianceClient interface {
	ListStaticMappings(ctx context.Context, iface string) ([]domain.StaticMapping, error)
	CreateStaticMapping(ctx context.Context, m domain.StaticMapping) (domain.StaticMapping, error)
	UpdateStaticMapping(ctx context.Context, m domain.StaticMapping) error
	DeleteStaticMapping(ctx context.Context, iface string, id int) error
}
