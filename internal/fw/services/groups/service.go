// Package groups manages appliance aliases as device groups and reports how each
// group is blocked.
package groups

import (
	"context"
	"fmt"
	"strings"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/validate"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// Group is an alias annotated with its derived block status.
type Group struct {
	domain.Alias
	BlockStatus domain.GroupBlockStatus `json:"blockStatus"`
}

// CreateRequest describes a new host alias.
type CreateRequest struct {
	Name        string   `json:"name" validate:"required,alias_name,max=31"`
	Description string   `json:"description" validate:"max=200"`
	Members     []string `json:"members"`
}

// UpdateRequest replaces the member list; a nil Description keeps the current one.
type UpdateRequest struct {
	Description *string  `json:"description" validate:"omitempty,max=200"`
	Members     []string `json:"members"`
}

// Service edits aliases. Edits are staged on the appliance and take effect when
// the firewall subsystem is applied.
type Service struct {
	client    ApplianceClient
	blocklist Blocklist
	clock     clock.Clock
	logger    log.Logger
}

// Options configures a Service.
type Options struct {
	Client    ApplianceClient
	Blocklist Blocklist
	Clock     clock.Clock
	Logger    log.Logger
}

// NewService returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Client == nil || opts.Blocklist == nil {
		return nil, fmt.Errorf("appliance client and blocklist are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{client: opts.Client, blocklist: opts.Blocklist, clock: opts.Clock, logger: opts.Logger}, nil
}

// List returns every alias with its block status, computed from one blocklist read.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return nil, upstream(err, "list aliases")
	}
	statuses := s.blocklist.GroupStatuses(ctx, aliases)
	groups := make([]Group, 0, len(aliases))
	for _, a := range aliases {
		groups = append(groups, Group{Alias: a, BlockStatus: statuses[a.Name]})
	}
	return groups, nil
}

// Get returns one alias with its block status.
func (s *Service) Get(ctx context.Context, name string) (Group, error) {
	a, err := s.find(ctx, name)
	if err != nil {
		return Group{}, err
	}
	return Group{Alias: a, BlockStatus: s.blocklist.GroupBlockStatus(ctx, a.Name, a.Members())}, nil
}

// Status returns only the block status of the named alias.
func (s *Service) Status(ctx context.Context, name string) (domain.GroupBlockStatus, error) {
	g, err := s.Get(ctx, name)
	if err != nil {
		return domain.GroupBlockStatus{}, err
	}
	return g.BlockStatus, nil
}

func (s *Service) find(ctx context.Context, name string) (domain.Alias, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return domain.Alias{}, upstream(err, "list aliases")
	}
	a, ok := domain.FindAlias(aliases, name)
	if !ok {
		return domain.Alias{}, domain.NewError(domain.ErrKindNotFound, "group %s not found", name)
	}
	return a, nil
}

// Create stages a new host alias. Members are annotated with the creation time.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Alias, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.Alias{}, err
	}
	members := cleanMembers(req.Members)
	details := make([]string, len(members))
	note := domain.MemberAnnotation(s.clock.Now())
	for i := range details {
		details[i] = note
	}

	var created domain.Alias
	err := s.blocklist.Exclusive(func() error {
		var err error
		created, err = s.client.CreateAlias(ctx, domain.Alias{
			Name:        req.Name,
			Type:        domain.AliasTypeHost,
			Description: req.Description,
			Addresses:   members,
			Details:     details,
		})
		return err
	})
	if err != nil {
		return domain.Alias{}, upstream(err, "create alias "+req.Name)
	}
	s.logger.Info(map[string]any{"group": req.Name, "members": len(members)}, "Created group")
	return created, nil
}

// Update replaces the member list of an alias in one write. Details of members that
// stay are kept; new members are annotated.
func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) (domain.Alias, error) {
	if err := validate.Struct(req); err != nil {
		return domain.Alias{}, err
	}
	var updated domain.Alias
	err := s.blocklist.Exclusive(func() error {
		a, err := s.find(ctx, name)
		if err != nil {
			return err
		}
		if s.blocklist.IsProtected(a) {
			return domain.NewError(domain.ErrKindValidation, "group %s is protected", name)
		}

		existing := domain.BlockedSetFromAlias(a)
		note := domain.MemberAnnotation(s.clock.Now())
		members := cleanMembers(req.Members)
		details := make([]string, len(members))
		for i, m := range members {
			details[i] = note
			for _, e := range existing.Entries {
				if strings.EqualFold(e.Value, m) {
					details[i] = e.Detail
					break
				}
			}
		}

		update := domain.AliasUpdate{ID: a.ID, Name: a.Name, Addresses: members, Details: details, Description: req.Description}
		if err := s.client.ReplaceAlias(ctx, update); err != nil {
			return upstream(err, "update alias "+a.Name)
		}
		updated = a
		updated.Addresses, updated.Details = members, details
		if req.Description != nil {
			updated.Description = *req.Description
		}
		return nil
	})
	if err != nil {
		return domain.Alias{}, err
	}
	s.logger.Info(map[string]any{"group": name, "members": len(updated.Addresses)}, "Updated group")
	return updated, nil
}

// Delete stages removal of an alias. Protected aliases cannot be deleted.
func (s *Service) Delete(ctx context.Context, name string) error {
	err := s.blocklist.Exclusive(func() error {
		a, err := s.find(ctx, name)
		if err != nil {
			return err
		}
		if s.blocklist.IsProtected(a) {
			return domain.NewError(domain.ErrKindValidation, "group %s is protected", name)
		}
		if err := s.client.DeleteAlias(ctx, a.ID); err != nil {
			return upstream(err, "delete alias "+a.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(map[string]any{"group": name}, "Deleted group")
	return nil
}

// Block adds the group's alias name to the blocklist.
func (s *Service) Block(ctx context.Context, name string) (domain.BlockResult, error) {
	if !domain.IsAliasName(name) {
		return domain.BlockResult{}, domain.NewError(domain.ErrKindValidation, "%q is not a group name", name)
	}
	return s.blocklist.Block(ctx, name)
}

// Unblock removes the group's alias name from the blocklist.
func (s *Service) Unblock(ctx context.Context, name string) (domain.BlockResult, error) {
	if !domain.IsAliasName(name) {
		return domain.BlockResult{}, domain.NewError(domain.ErrKindValidation, "%q is not a group name", name)
	}
	return s.blocklist.Unblock(ctx, name)
}

// cleanMembers trims members, drops blanks and repeats (case-insensitive), keeping order.
func cleanMembers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

func upstream(err error, op string) error {
	if domain.KindOf(err) == domain.ErrKindUnknown {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, "failed to %s", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
