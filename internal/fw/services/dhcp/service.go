// Package dhcp manages static DHCP reservations on one appliance interface.
package dhcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/validate"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// SetRequest creates or updates the reservation for MAC.
type SetRequest struct {
	MAC         string `json:"mac" validate:"required,hw_mac"`
	IP          string `json:"ip" validate:"required"`
	Hostname    string `json:"hostname" validate:"omitempty,hostname_rfc1123,max=63"`
	Description string `json:"description" validate:"max=200"`
}

// Service edits static mappings. Reads are live; edits are serialized in-process.
type Service struct {
	client    ApplianceClient
	logger    log.Logger
	iface     string
	subnet    netip.Prefix
	poolStart netip.Addr
	poolEnd   netip.Addr

	mu sync.Mutex
}

// Options configures a Service.
type Options struct {
	Client    ApplianceClient
	Logger    log.Logger
	Interface string
	Subnet    string
	PoolStart string
	PoolEnd   string
}

// NewService parses the address plan and returns a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("appliance client is required")
	}
	if opts.Interface == "" {
		return nil, fmt.Errorf("dhcp interface is required")
	}
	subnet, err := netip.ParsePrefix(opts.Subnet)
	if err != nil || !subnet.Addr().Is4() {
		return nil, fmt.Errorf("invalid dhcp subnet %q", opts.Subnet)
	}
	start, err := netip.ParseAddr(opts.PoolStart)
	if err != nil || !start.Is4() {
		return nil, fmt.Errorf("invalid dhcp pool start %q", opts.PoolStart)
	}
	end, err := netip.ParseAddr(opts.PoolEnd)
	if err != nil || !end.Is4() {
		return nil, fmt.Errorf("invalid dhcp pool end %q", opts.PoolEnd)
	}
	if end.Less(start) {
		return nil, fmt.Errorf("dhcp pool end %s is before start %s", end, start)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{
		client:    opts.Client,
		logger:    opts.Logger,
		iface:     opts.Interface,
		subnet:    subnet.Masked(),
		poolStart: start,
		poolEnd:   end,
	}, nil
}

// List returns the reservations of the managed interface.
func (s *Service) List(ctx context.Context) ([]domain.StaticMapping, error) {
	mappings, err := s.client.ListStaticMappings(ctx, s.iface)
	if err != nil {
		return nil, upstream(err, "list static mappings")
	}
	if mappings == nil {
		mappings = []domain.StaticMapping{}
	}
	return mappings, nil
}

// Set creates the reservation for req.MAC, or updates it when one exists.
// The boolean reports whether a new reservation was created.
func (s *Service) Set(ctx context.Context, req SetRequest) (domain.StaticMapping, bool, error) {
	if err := validate.Struct(req); err != nil {
		return domain.StaticMapping{}, false, err
	}
	mac, err := domain.NormalizeMAC(req.MAC)
	if err != nil {
		return domain.StaticMapping{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, err := s.List(ctx)
	if err != nil {
		return domain.StaticMapping{}, false, err
	}
	existing, found := findByMAC(mappings, mac)
	current := ""
	if found {
		current = existing.IP
	}
	if reason := s.validateIP(mappings, req.IP, current); reason != "" {
		return domain.StaticMapping{}, false, domain.NewError(domain.ErrKindValidation, "%s", reason)
	}

	m := domain.StaticMapping{
		Interface:   s.iface,
		MAC:         mac,
		IP:          strings.TrimSpace(req.IP),
		Hostname:    req.Hostname,
		Description: req.Description,
	}
	if found {
		m.ID = existing.ID
		if err := s.client.UpdateStaticMapping(ctx, m); err != nil {
			return domain.StaticMapping{}, false, upstream(err, "update static mapping")
		}
		s.logger.Info(map[string]any{"mac": mac, "ip": m.IP}, "Updated static mapping")
		return m, false, nil
	}
	created, err := s.client.CreateStaticMapping(ctx, m)
	if err != nil {
		return domain.StaticMapping{}, false, upstream(err, "create static mapping")
	}
	s.logger.Info(map[string]any{"mac": mac, "ip": m.IP}, "Created static mapping")
	return created, true, nil
}

// Delete removes the reservation for mac.
func (s *Service) Delete(ctx context.Context, mac string) error {
	norm, err := domain.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, err := s.List(ctx)
	if err != nil {
		return err
	}
	m, ok := findByMAC(mappings, norm)
	if !ok {
		return domain.NewError(domain.ErrKindNotFound, "no static mapping for %s", norm)
	}
	if err := s.client.DeleteStaticMapping(ctx, s.iface, m.ID); err != nil {
		return upstream(err, "delete static mapping")
	}
	s.logger.Info(map[string]any{"mac": norm, "ip": m.IP}, "Deleted static mapping")
	return nil
}

// ValidateStaticIP returns why ip cannot be reserved, or "" when it can. The
// reservation currently holding current is ignored, so a mapping may keep its IP.
func (s *Service) ValidateStaticIP(ctx context.Context, ip, current string) (string, error) {
	mappings, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	return s.validateIP(mappings, ip, current), nil
}

func (s *Service) validateIP(mappings []domain.StaticMapping, ip, current string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !addr.Is4() {
		return "Invalid IP address format"
	}
	if !s.subnet.Contains(addr) {
		return fmt.Sprintf("IP address must be within %s", s.subnet)
	}
	if addr == s.subnet.Addr() || addr == broadcast(s.subnet) {
		return "IP address cannot be the network or broadcast address"
	}
	if !addr.Less(s.poolStart) && !s.poolEnd.Less(addr) {
		return fmt.Sprintf("IP address must be outside the DHCP pool (%s - %s)", s.poolStart, s.poolEnd)
	}
	for _, m := range mappings {
		if m.IP != addr.String() || (current != "" && m.IP == current) {
			continue
		}
		return fmt.Sprintf("IP address is already assigned to %s", m.MAC)
	}
	return ""
}

func broadcast(p netip.Prefix) netip.Addr {
	b := p.Masked().Addr().As4()
	n := binary.BigEndian.Uint32(b[:]) | (^uint32(0) >> p.Bits())
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}

func findByMAC(mappings []domain.StaticMapping, mac string) (domain.StaticMapping, bool) {
	for _, m := range mappings {
		if domain.SameMAC(m.MAC, mac) {
			return m, true
		}
	}
	return domain.StaticMapping{}, false
}

func upstream(err error, op string) error {
	if domain.KindOf(err) == domain.ErrKindUnknown {
		return domain.WrapError(domain.ErrKindUpstreamUnavailable, err, "failed to %s", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
