// Package pending reports and applies staged appliance changes.
package pending

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// ApplianceClient exposes the staged-change state of appliance subsystems.
type ApplianceClient interface {
	PendingStatus(ctx context.Context, subsystem string) (domain.PendingStatus, error)
	ApplySubsystem(ctx context.Context, name string) error
}

// Subsystems are the services whose changes can be reviewed and applied.
var Subsystems = []string{domain.SubsystemFirewall, domain.SubsystemDHCP}

// ServiceStatus is the pending state of one subsystem.
type ServiceStatus struct {
	Service    string `json:"service"`
	HasPending bool   `json:"hasPending"`
	Count      int    `json:"count"`
}

// Summary aggregates every subsystem.
type Summary struct {
	HasPending bool            `json:"hasPending"`
	TotalCount int             `json:"totalCount"`
	Services   []ServiceStatus `json:"services"`
}

// Service reads and applies pending changes.
type Service struct {
	client ApplianceClient
	logger log.Logger
}

// NewService returns a Service.
func NewService(client ApplianceClient, logger log.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("appliance client is required")
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Service{client: client, logger: logger}, nil
}

// Pending queries every subsystem concurrently.
func (s *Service) Pending(ctx context.Context) (Summary, error) {
	statuses := make([]ServiceStatus, len(Subsystems))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range Subsystems {
		g.Go(func() error {
			st, err := s.client.PendingStatus(gctx, name)
			if err != nil {
				if domain.KindOf(err) == domain.ErrKindUnknown {
					return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, "failed to read %s status", name)
				}
				return fmt.Errorf("failed to read %s status: %w", name, err)
			}
			count := len(st.Subsystems)
			if !st.Applied && count == 0 {
				count = 1
			}
			statuses[i] = ServiceStatus{Service: name, HasPending: !st.Applied, Count: count}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Services: statuses}
	for _, st := range statuses {
		if st.HasPending {
			sum.HasPending = true
			sum.TotalCount += st.Count
		}
	}
	return sum, nil
}

// Apply activates staged changes of one subsystem.
func (s *Service) Apply(ctx context.Context, service string) error {
	if !isSubsystem(service) {
		return domain.NewError(domain.ErrKindValidation, "Invalid service type")
	}
	if err := s.client.ApplySubsystem(ctx, service); err != nil {
		return domain.WrapError(domain.ErrKindApplyFailed, err, "failed to apply %s changes", service)
	}
	s.logger.Info(map[string]any{"service": service}, "Applied pending changes")
	return nil
}

func isSubsystem(name string) bool {
	for _, s := range Subsystems {
		if s == name {
			return true
		}
	}
	return false
}
