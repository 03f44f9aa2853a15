// Package blocklist classifies identifiers, resolves them to blockable values and
// reconciles the appliance's single blocklist alias.
package blocklist

import (
	"context"
	"fmt"
	"sync"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/utils"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// DefaultBlockedAlias is the blocklist alias name used when none is configured.
const DefaultBlockedAlias = "BLOCKED"

// Service reconciles the blocklist alias against caller requests.
//
// Reads are never cached. Mutations run a full read-modify-write against the
// appliance and are serialized by writeMu so two requests in this process cannot
// lose each other's update. Other writers to the appliance are not covered.
type Service struct {
	client       ApplianceClient
	clock        clock.Clock
	logger       log.Logger
	blockedAlias string
	protected    map[string]struct{}

	writeMu sync.Mutex
}

// Options configures a Service.
type Options struct {
	Client ApplianceClient
	Clock  clock.Clock
	Logger log.Logger

	// BlockedAlias names the alias treated as the blocked set.
	BlockedAlias string
	// ProtectedAliases are never modified by membership reconciliation.
	ProtectedAliases []string
}

// NewService validates opts and returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("appliance client is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.BlockedAlias == "" {
		opts.BlockedAlias = DefaultBlockedAlias
	}
	protected := make(map[string]struct{}, len(opts.ProtectedAliases)+1)
	protected[opts.BlockedAlias] = struct{}{}
	for _, name := range opts.ProtectedAliases {
		protected[name] = struct{}{}
	}
	return &Service{
		client:       opts.Client,
		clock:        opts.Clock,
		logger:       opts.Logger,
		blockedAlias: opts.BlockedAlias,
		protected:    protected,
	}, nil
}

// BlockedAlias returns the configured blocklist alias name.
func (s *Service) BlockedAlias() string { return s.blockedAlias }

// IsProtected reports whether a is off limits to generic membership edits: the
// blocklist alias, configured infrastructure aliases, and network aliases.
func (s *Service) IsProtected(a domain.Alias) bool {
	if _, ok := s.protected[a.Name]; ok {
		return true
	}
	return a.Type == domain.AliasTypeNetwork
}

// Resolve classifies raw and maps it to the value that goes into the blocklist.
// IPs pass through, alias names must exist, hostnames become the IP of the first
// lease (snapshot order) whose hostname matches case-insensitively.
func (s *Service) Resolve(ctx context.Context, raw string) (domain.Identifier, string, error) {
	id, err := domain.Classify(raw)
	if err != nil {
		return domain.Identifier{}, "", err
	}
	value, err := s.resolve(ctx, id)
	return id, value, err
}

func (s *Service) resolve(ctx context.Context, id domain.Identifier) (string, error) {
	switch id.Kind {
	case domain.KindIP:
		return id.Value, nil
	case domain.KindAlias:
		aliases, err := s.client.ListAliases(ctx)
		if err != nil {
			return "", upstreamError(err, "list aliases")
		}
		if _, ok := domain.FindAlias(aliases, id.Value); !ok {
			return "", domain.NewError(domain.ErrKindAliasNotFound, "alias %s not found", id.Value)
		}
		return id.Value, nil
	case domain.KindHostname:
		leases, err := s.client.ListLeases(ctx)
		if err != nil {
			return "", upstreamError(err, "list leases")
		}
		for _, l := range leases {
			if l.IP != "" && utils.SameHostname(l.Hostname, id.Value) {
				return l.IP, nil
			}
		}
		return "", domain.NewError(domain.ErrKindHostnameUnresolved, "hostname %s has no current lease", id.Value)
	default:
		return "", domain.NewError(domain.ErrKindInvalidIdentifier, "unsupported identifier %q", id.Raw)
	}
}

// Exclusive runs fn under the lock that serializes every alias write made through
// this service, so other read-modify-write paths cannot interleave with it.
// fn must not call back into Block, Unblock or ReconcileMembership.
func (s *Service) Exclusive(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn()
}

// BlockedSet fetches the current blocklist snapshot.
func (s *Service) BlockedSet(ctx context.Context) (domain.BlockedSet, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return domain.BlockedSet{}, upstreamError(err, "list aliases")
	}
	return s.BlockedSetFrom(aliases)
}

// BlockedSetFrom extracts the blocklist from an alias snapshot already in hand.
func (s *Service) BlockedSetFrom(aliases []domain.Alias) (domain.BlockedSet, error) {
	a, ok := domain.FindAlias(aliases, s.blockedAlias)
	if !ok {
		return domain.BlockedSet{}, domain.NewError(domain.ErrKindBlockedSetMissing, "%s alias not found", s.blockedAlias)
	}
	return domain.BlockedSetFromAlias(a), nil
}

// Block adds the identifier's blockable value to the blocklist and applies the
// firewall. Blocking an already blocked value is a successful no-op.
func (s *Service) Block(ctx context.Context, raw string) (domain.BlockResult, error) {
	id, value, err := s.Resolve(ctx, raw)
	res := domain.BlockResult{BlockableValue: value, Kind: id.Kind}
	if err != nil {
		return failed(res, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	set, err := s.BlockedSet(ctx)
	if err != nil {
		return failed(res, err)
	}
	if set.Contains(value) {
		res.Success, res.Message = true, domain.MsgAlreadyBlocked
		return res, nil
	}

	next := set.WithEntry(value, s.clock.Now())
	if err := s.commit(ctx, next); err != nil {
		return failed(res, err)
	}

	s.logger.Info(map[string]any{
		"identifier": id.Value,
		"kind":       id.Kind.String(),
		"value":      value,
		"entries":    next.Len(),
	}, "Blocked identifier")

	res.Success, res.Message, res.Changed = true, domain.MsgBlocked, true
	return res, nil
}

// Unblock removes the identifier's blockable value from the blocklist and applies
// the firewall. Unblocking a value that is not blocked is a successful no-op.
func (s *Service) Unblock(ctx context.Context, raw string) (domain.BlockResult, error) {
	id, value, err := s.Resolve(ctx, raw)
	res := domain.BlockResult{BlockableValue: value, Kind: id.Kind}
	if err != nil {
		return failed(res, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	set, err := s.BlockedSet(ctx)
	if err != nil {
		return failed(res, err)
	}
	idx := set.IndexOf(value)
	if idx < 0 {
		res.Success, res.Message = true, domain.MsgNotBlocked
		return res, nil
	}

	next := set.WithoutIndex(idx)
	if err := s.commit(ctx, next); err != nil {
		return failed(res, err)
	}

	s.logger.Info(map[string]any{
		"identifier": id.Value,
		"kind":       id.Kind.String(),
		"value":      value,
		"entries":    next.Len(),
	}, "Unblocked identifier")

	res.Success, res.Message, res.Changed = true, domain.MsgUnblocked, true
	return res, nil
}

// BlockDevice adds a hardware address entry to the blocklist and applies the
// firewall. The address is stored lowercased with colons; an entry already holding
// the same address in any case or separator style counts as blocked.
func (s *Service) BlockDevice(ctx context.Context, mac string) (domain.BlockResult, error) {
	res := domain.BlockResult{Kind: domain.KindMAC}
	value, err := domain.NormalizeMAC(mac)
	if err != nil {
		return failed(res, err)
	}
	res.BlockableValue = value

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	set, err := s.BlockedSet(ctx)
	if err != nil {
		return failed(res, err)
	}
	if set.IndexOfMAC(value) >= 0 {
		res.Success, res.Message = true, domain.MsgAlreadyBlocked
		return res, nil
	}

	next := set.WithEntry(value, s.clock.Now())
	if err := s.commit(ctx, next); err != nil {
		return failed(res, err)
	}

	s.logger.Info(map[string]any{"mac": value, "entries": next.Len()}, "Blocked device")

	res.Success, res.Message, res.Changed = true, domain.MsgBlocked, true
	return res, nil
}

// UnblockDevice removes every entry holding the hardware address, whatever its
// stored case or separator style, with one write and one apply.
func (s *Service) UnblockDevice(ctx context.Context, mac string) (domain.BlockResult, error) {
	res := domain.BlockResult{Kind: domain.KindMAC}
	value, err := domain.NormalizeMAC(mac)
	if err != nil {
		return failed(res, err)
	}
	res.BlockableValue = value

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	set, err := s.BlockedSet(ctx)
	if err != nil {
		return failed(res, err)
	}
	next := set
	for idx := next.IndexOfMAC(value); idx >= 0; idx = next.IndexOfMAC(value) {
		next = next.WithoutIndex(idx)
	}
	if next.Len() == set.Len() {
		res.Success, res.Message = true, domain.MsgNotBlocked
		return res, nil
	}

	if err := s.commit(ctx, next); err != nil {
		return failed(res, err)
	}

	s.logger.Info(map[string]any{
		"mac":     value,
		"removed": set.Len() - next.Len(),
		"entries": next.Len(),
	}, "Unblocked device")

	res.Success, res.Message, res.Changed = true, domain.MsgUnblocked, true
	return res, nil
}

// commit writes the whole set back and applies the firewall subsystem.
// A failed apply leaves the write staged on the appliance; nothing is rolled back.
func (s *Service) commit(ctx context.Context, set domain.BlockedSet) error {
	if err := s.client.ReplaceAlias(ctx, set.Update()); err != nil {
		return upstreamError(err, "update "+s.blockedAlias+" alias")
	}
	return s.apply(ctx)
}

func (s *Service) apply(ctx context.Context) error {
	if err := s.client.ApplySubsystem(ctx, domain.SubsystemFirewall); err != nil {
		return domain.WrapError(domain.ErrKindApplyFailed, err, "failed to apply firewall changes")
	}
	return nil
}

// GroupBlockStatus reports how group is blocked. It never fails: when the
// blocklist cannot be read the status is unknown with zero counts.
func (s *Service) GroupBlockStatus(ctx context.Context, group string, members []string) domain.GroupBlockStatus {
	set, err := s.BlockedSet(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"group": group, "error": err}, "Group block status unavailable")
		return domain.UnknownGroupStatus()
	}
	return domain.ComputeGroupStatus(set, group, members)
}

// GroupStatuses computes the status of every alias in aliases from one blocklist
// fetch. On failure every alias is reported unknown.
func (s *Service) GroupStatuses(ctx context.Context, aliases []domain.Alias) map[string]domain.GroupBlockStatus {
	out := make(map[string]domain.GroupBlockStatus, len(aliases))
	set, err := s.BlockedSet(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"groups": len(aliases), "error": err}, "Group block status unavailable")
	}
	for _, a := range aliases {
		if err != nil {
			out[a.Name] = domain.UnknownGroupStatus()
			continue
		}
		out[a.Name] = domain.ComputeGroupStatus(set, a.Name, a.Members())
	}
	return out
}

// ReconcileMembership makes the identifier a member of exactly the desired groups.
// Each alias that needs a change gets one replace write; protected aliases are
// reported as skipped whatever the desired state. One firewall apply follows when
// anything changed. A failed write stops the pass and returns the changes so far.
func (s *Service) ReconcileMembership(ctx context.Context, raw string, desired []string) ([]domain.MembershipChange, error) {
	id, err := domain.Classify(raw)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(desired))
	for _, g := range desired {
		want[g] = struct{}{}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return nil, upstreamError(err, "list aliases")
	}

	changes := make([]domain.MembershipChange, 0, len(aliases))
	changed := 0
	for _, a := range aliases {
		if s.IsProtected(a) {
			changes = append(changes, domain.MembershipChange{Group: a.Name, Action: domain.MembershipSkipped})
			continue
		}
		_, wanted := want[a.Name]
		member := a.HasMember(id.Value)

		var update domain.AliasUpdate
		var action domain.MembershipAction
		switch {
		case wanted && !member:
			update, action = a.WithMember(id.Value, domain.MemberAnnotation(s.clock.Now())), domain.MembershipAdded
		case !wanted && member:
			update, action = a.WithoutMember(id.Value), domain.MembershipRemoved
		default:
			changes = append(changes, domain.MembershipChange{Group: a.Name, Action: domain.MembershipUnchanged})
			continue
		}

		if err := s.client.ReplaceAlias(ctx, update); err != nil {
			return changes, upstreamError(err, "update "+a.Name+" alias")
		}
		changed++
		changes = append(changes, domain.MembershipChange{Group: a.Name, Action: action})
	}

	if changed > 0 {
		if err := s.apply(ctx); err != nil {
			return changes, err
		}
		s.logger.Info(map[string]any{"identifier": id.Value, "changed": changed}, "Reconciled group membership")
	}
	return changes, nil
}

func failed(res domain.BlockResult, err error) (domain.BlockResult, error) {
	res.Success = false
	res.Message = err.Error()
	return res, err
}

// upstreamError adds call context and classifies bare transport errors.
func upstreamError(err error, op string) error {
	if domain.KindOf(err) == domain.ErrKindUnknown {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, "failed to %s", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
