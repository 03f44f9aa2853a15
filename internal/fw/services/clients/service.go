// Package clients builds the device views: who is connected, who is blocked, and
// the dashboard counters.
package clients

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// Status and hostname placeholders used in client rows.
const (
	StatusActive    = "active"
	StatusOffline   = "offline"
	UnknownHostname = "Unknown"
	OfflineHostname = "Not connected"
)

// Overview is the dashboard summary. SystemInfo is nil when the appliance status
// endpoint could not be read.
type Overview struct {
	TotalConnected int                `json:"totalConnected"`
	TotalBlocked   int                `json:"totalBlocked"`
	ActiveBlocked  int                `json:"activeBlocked"`
	SystemInfo     *domain.SystemInfo `json:"systemInfo"`
}

// Service assembles client views from live appliance reads.
type Service struct {
	appliance ApplianceReader
	blocked   BlockedSets
	logger    log.Logger
}

// Options configures a Service.
type Options struct {
	Appliance ApplianceReader
	Blocked   BlockedSets
	Logger    log.Logger
}

// NewService returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Appliance == nil || opts.Blocked == nil {
		return nil, fmt.Errorf("appliance and blocked set source are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{appliance: opts.Appliance, blocked: opts.Blocked, logger: opts.Logger}, nil
}

// snapshot is one consistent-enough read of everything the views need.
type snapshot struct {
	aliases []domain.Alias
	leases  []domain.Lease
	arp     []domain.ARPEntry
	set     domain.BlockedSet
}

func (s *Service) read(ctx context.Context, withARP bool) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.aliases, err = s.appliance.ListAliases(gctx)
		return wrap(err, "list aliases")
	})
	g.Go(func() (err error) {
		snap.leases, err = s.appliance.ListLeases(gctx)
		return wrap(err, "list leases")
	})
	if withARP {
		g.Go(func() (err error) {
			snap.arp, err = s.appliance.ListARP(gctx)
			return wrap(err, "read arp table")
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	set, err := s.blocked.BlockedSetFrom(snap.aliases)
	if err != nil {
		return snapshot{}, err
	}
	snap.set = set
	return snap, nil
}

// Connected lists every device from the lease table, then ARP-only devices.
// Rows are de-duplicated by MAC and flagged blocked when their IP, or for older
// entries their MAC, is in the blocklist.
func (s *Service) Connected(ctx context.Context) ([]domain.Client, error) {
	snap, err := s.read(ctx, true)
	if err != nil {
		return nil, err
	}
	return merge(snap), nil
}

func merge(snap snapshot) []domain.Client {
	seen := make(map[string]struct{}, len(snap.leases)+len(snap.arp))
	clients := make([]domain.Client, 0, len(snap.leases)+len(snap.arp))

	add := func(c domain.Client) {
		if c.MAC == "" {
			return
		}
		key := macKey(c.MAC)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		c.Blocked = isBlocked(snap.set, c)
		clients = append(clients, c)
	}

	for _, l := range snap.leases {
		add(domain.Client{
			MAC:       l.MAC,
			IP:        optional(l.IP),
			Hostname:  orDefault(l.Hostname, UnknownHostname),
			Status:    orDefault(l.State, StatusActive),
			LeaseEnd:  l.Ends,
			Interface: l.Interface,
		})
	}
	for _, a := range snap.arp {
		add(domain.Client{
			MAC:       a.MAC,
			IP:        optional(a.IP),
			Hostname:  orDefault(a.Hostname, UnknownHostname),
			Status:    StatusActive,
			Interface: a.Interface,
		})
	}
	return clients
}

// Blocked lists connected blocked devices followed by an offline row for every
// blocked IP or MAC that no connected device matches. Alias and hostname entries
// only appear in BlockedItems.
func (s *Service) Blocked(ctx context.Context) ([]domain.Client, error) {
	snap, err := s.read(ctx, true)
	if err != nil {
		return nil, err
	}
	connected := merge(snap)

	matched := make(map[string]struct{}, len(connected)*2)
	var out []domain.Client
	for _, c := range connected {
		if c.IP != nil {
			matched[*c.IP] = struct{}{}
		}
		matched[macKey(c.MAC)] = struct{}{}
		if c.Blocked {
			out = append(out, c)
		}
	}
	for _, v := range snap.set.Values() {
		offline := domain.Client{Hostname: OfflineHostname, Status: StatusOffline, Blocked: true}
		key := v
		switch {
		case domain.IsIPv4(v):
			offline.IP = optional(v)
		case isMAC(v):
			offline.MAC = v
			key = macKey(v)
		default:
			continue
		}
		if _, ok := matched[key]; ok {
			continue
		}
		out = append(out, offline)
	}
	if out == nil {
		out = []domain.Client{}
	}
	return out, nil
}

// Overview returns the dashboard counters. System info is best effort.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		snap snapshot
		info *domain.SystemInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap, err = s.read(gctx, true)
		return err
	})
	g.Go(func() error {
		si, err := s.appliance.SystemInfo(gctx)
		if err != nil {
			s.logger.Warn(map[string]any{"error": err}, "System info unavailable")
			return nil
		}
		info = &si
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	connected := merge(snap)
	ov := Overview{
		TotalConnected: len(connected),
		TotalBlocked:   snap.set.Len(),
		SystemInfo:     info,
	}
	for _, c := range connected {
		if c.Blocked {
			ov.ActiveBlocked++
		}
	}
	return ov, nil
}

// BlockedItems describes every blocklist entry: IPs gain the hostname and MAC of a
// matching lease, device entries the hostname of their lease, aliases their
// description and member count.
func (s *Service) BlockedItems(ctx context.Context) ([]domain.BlockedItem, error) {
	snap, err := s.read(ctx, false)
	if err != nil {
		return nil, err
	}
	items := make([]domain.BlockedItem, 0, snap.set.Len())
	for _, e := range snap.set.Entries {
		item := domain.BlockedItem{Value: e.Value, Detail: e.Detail}
		if isMAC(e.Value) {
			item.Type = domain.KindMAC
			item.Hostname = UnknownHostname
			for _, l := range snap.leases {
				if domain.SameMAC(l.MAC, e.Value) {
					item.Hostname = orDefault(l.Hostname, UnknownHostname)
					break
				}
			}
			items = append(items, item)
			continue
		}
		id, err := domain.Classify(e.Value)
		if err != nil {
			continue
		}
		item.Type = id.Kind
		switch id.Kind {
		case domain.KindIP:
			item.Hostname = UnknownHostname
			for _, l := range snap.leases {
				if l.IP == e.Value {
					item.Hostname = orDefault(l.Hostname, UnknownHostname)
					item.MAC = optional(l.MAC)
					break
				}
			}
		case domain.KindAlias:
			if a, ok := domain.FindAlias(snap.aliases, e.Value); ok {
				item.Description = a.Description
				item.MemberCount = len(a.Members())
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func isBlocked(set domain.BlockedSet, c domain.Client) bool {
	if c.IP != nil && set.Contains(*c.IP) {
		return true
	}
	for _, v := range set.Values() {
		if isMAC(v) && domain.SameMAC(v, c.MAC) {
			return true
		}
	}
	return false
}

func isMAC(s string) bool {
	_, err := domain.NormalizeMAC(s)
	return err == nil
}

func macKey(mac string) string {
	if n, err := domain.NormalizeMAC(mac); err == nil {
		return n
	}
	return mac
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) == domain.ErrKindUnknown {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, "failed to %s", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
