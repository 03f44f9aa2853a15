// Package memappliance is an in-memory stand-in for the firewall appliance. It backs
// the "memory" driver for local development and is the fake used by service tests.
package memappliance

import (
	"context"
	"slices"
	"sync"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

// Op names an appliance call for failure injection and call counting.
type Op string

const (
	OpListAliases         Op = "ListAliases"
	OpListLeases          Op = "ListLeases"
	OpListARP             Op = "ListARP"
	OpSystemInfo          Op = "SystemInfo"
	OpReplaceAlias        Op = "ReplaceAlias"
	OpCreateAlias         Op = "CreateAlias"
	OpDeleteAlias         Op = "DeleteAlias"
	OpApplySubsystem      Op = "ApplySubsystem"
	OpPendingStatus       Op = "PendingStatus"
	OpListStaticMappings  Op = "ListStaticMappings"
	OpCreateStaticMapping Op = "CreateStaticMapping"
	OpUpdateStaticMapping Op = "UpdateStaticMapping"
	OpDeleteStaticMapping Op = "DeleteStaticMapping"
)

// State is the full content of the fake appliance.
type State struct {
	Aliases        []domain.Alias
	Leases         []domain.Lease
	ARP            []domain.ARPEntry
	StaticMappings []domain.StaticMapping
	System         domain.SystemInfo
}

// Appliance is safe for concurrent use. Alias IDs are positional, as on pfSense:
// deleting an alias renumbers the ones after it.
type Appliance struct {
	mu      sync.Mutex
	state   State
	pending map[string][]string
	calls   map[Op]int
	applies map[string]int
	fail    map[Op]error
}

// New returns an appliance holding a copy of state.
func New(state State) *Appliance {
	a := &Appliance{
		state:   cloneState(state),
		pending: map[string][]string{},
		calls:   map[Op]int{},
		applies: map[string]int{},
		fail:    map[Op]error{},
	}
	a.renumberAliases()
	return a
}

// DefaultState is an empty network with the blocklist alias and the usual
// interface network alias.
func DefaultState(blockedAlias string) State {
	return State{
		Aliases: []domain.Alias{
			{Name: blockedAlias, Type: domain.AliasTypeHost, Description: "Devices blocked by fwmgr"},
			{Name: "LAN_NET", Type: domain.AliasTypeNetwork, Description: "LAN subnet", Addresses: []string{"192.168.1.0/24"}, Details: []string{""}},
		},
		System: domain.SystemInfo{Hostname: "memory", Version: "in-memory"},
	}
}

// FailOn makes every later call of op return err. A nil err clears the failure.
func (a *Appliance) FailOn(op Op, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.fail, op)
		return
	}
	a.fail[op] = err
}

// Calls returns how many times op was invoked, failed calls included.
func (a *Appliance) Calls(op Op) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

// Applies returns how many successful applies the subsystem received.
func (a *Appliance) Applies(subsystem string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applies[subsystem]
}

// Snapshot returns a deep copy of the current state.
func (a *Appliance) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneState(a.state)
}

// Alias returns a copy of the named alias.
func (a *Appliance) Alias(name string) (domain.Alias, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	al, ok := domain.FindAlias(a.state.Aliases, name)
	return cloneAlias(al), ok
}

// SetLeases replaces the lease table.
func (a *Appliance) SetLeases(leases []domain.Lease) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Leases = slices.Clone(leases)
}

func (a *Appliance) begin(ctx context.Context, op Op) error {
	a.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.fail[op]
}

func (a *Appliance) ListAliases(ctx context.Context) ([]domain.Alias, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpListAliases); err != nil {
		return nil, err
	}
	out := make([]domain.Alias, len(a.state.Aliases))
	for i, al := range a.state.Aliases {
		out[i] = cloneAlias(al)
	}
	return out, nil
}

func (a *Appliance) ListLeases(ctx context.Context) ([]domain.Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpListLeases); err != nil {
		return nil, err
	}
	return slices.Clone(a.state.Leases), nil
}

func (a *Appliance) ListARP(ctx context.Context) ([]domain.ARPEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpListARP); err != nil {
		return nil, err
	}
	return slices.Clone(a.state.ARP), nil
}

func (a *Appliance) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpSystemInfo); err != nil {
		return domain.SystemInfo{}, err
	}
	return a.state.System, nil
}

func (a *Appliance) ReplaceAlias(ctx context.Context, update domain.AliasUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpReplaceAlias); err != nil {
		return err
	}
	if update.ID < 0 || update.ID >= len(a.state.Aliases) {
		return domain.NewError(domain.ErrKindNotFound, "alias id %d not found", update.ID)
	}
	al := &a.state.Aliases[update.ID]
	al.Addresses = slices.Clone(update.Addresses)
	al.Details = slices.Clone(update.Details)
	if update.Description != nil {
		al.Description = *update.Description
	}
	a.markPending(domain.SubsystemFirewall, "aliases")
	return nil
}

func (a *Appliance) CreateAlias(ctx context.Context, alias domain.Alias) (domain.Alias, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpCreateAlias); err != nil {
		return domain.Alias{}, err
	}
	if _, exists := domain.FindAlias(a.state.Aliases, alias.Name); exists {
		return domain.Alias{}, domain.NewError(domain.ErrKindValidation, "alias %s already exists", alias.Name)
	}
	alias = cloneAlias(alias)
	alias.ID = len(a.state.Aliases)
	a.state.Aliases = append(a.state.Aliases, alias)
	a.markPending(domain.SubsystemFirewall, "aliases")
	return cloneAlias(alias), nil
}

func (a *Appliance) DeleteAlias(ctx context.Context, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpDeleteAlias); err != nil {
		return err
	}
	if id < 0 || id >= len(a.state.Aliases) {
		return domain.NewError(domain.ErrKindNotFound, "alias id %d not found", id)
	}
	a.state.Aliases = slices.Delete(a.state.Aliases, id, id+1)
	a.renumberAliases()
	a.markPending(domain.SubsystemFirewall, "aliases")
	return nil
}

func (a *Appliance) ApplySubsystem(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpApplySubsystem); err != nil {
		return err
	}
	delete(a.pending, name)
	a.applies[name]++
	return nil
}

func (a *Appliance) PendingStatus(ctx context.Context, subsystem string) (domain.PendingStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpPendingStatus); err != nil {
		return domain.PendingStatus{}, err
	}
	pending := slices.Clone(a.pending[subsystem])
	return domain.PendingStatus{Applied: len(pending) == 0, Subsystems: pending}, nil
}

func (a *Appliance) ListStaticMappings(ctx context.Context, iface string) ([]domain.StaticMapping, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpListStaticMappings); err != nil {
		return nil, err
	}
	var out []domain.StaticMapping
	for _, m := range a.state.StaticMappings {
		if m.Interface == iface {
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *Appliance) CreateStaticMapping(ctx context.Context, m domain.StaticMapping) (domain.StaticMapping, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpCreateStaticMapping); err != nil {
		return domain.StaticMapping{}, err
	}
	m.ID = a.nextMappingID(m.Interface)
	a.state.StaticMappings = append(a.state.StaticMappings, m)
	a.markPending(domain.SubsystemDHCP, "dhcpd")
	return m, nil
}

func (a *Appliance) UpdateStaticMapping(ctx context.Context, m domain.StaticMapping) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpUpdateStaticMapping); err != nil {
		return err
	}
	i := a.mappingIndex(m.Interface, m.ID)
	if i < 0 {
		return domain.NewError(domain.ErrKindNotFound, "static mapping %d not found", m.ID)
	}
	a.state.StaticMappings[i] = m
	a.markPending(domain.SubsystemDHCP, "dhcpd")
	return nil
}

func (a *Appliance) DeleteStaticMapping(ctx context.Context, iface string, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.begin(ctx, OpDeleteStaticMapping); err != nil {
		return err
	}
	i := a.mappingIndex(iface, id)
	if i < 0 {
		return domain.NewError(domain.ErrKindNotFound, "static mapping %d not found", id)
	}
	a.state.StaticMappings = slices.Delete(a.state.StaticMappings, i, i+1)
	// pfSense ids are positions within the interface's mapping list.
	next := 0
	for j := range a.state.StaticMappings {
		if a.state.StaticMappings[j].Interface == iface {
			a.state.StaticMappings[j].ID = next
			next++
		}
	}
	a.markPending(domain.SubsystemDHCP, "dhcpd")
	return nil
}

func (a *Appliance) nextMappingID(iface string) int {
	n := 0
	for _, m := range a.state.StaticMappings {
		if m.Interface == iface {
			n++
		}
	}
	return n
}

func (a *Appliance) mappingIndex(iface string, id int) int {
	for i, m := range a.state.StaticMappings {
		if m.Interface == iface && m.ID == id {
			return i
		}
	}
	return -1
}

func (a *Appliance) markPending(subsystem, what string) {
	if !slices.Contains(a.pending[subsystem], what) {
		a.pending[subsystem] = append(a.pending[subsystem], what)
	}
}

func (a *Appliance) renumberAliases() {
	for i := range a.state.Aliases {
		a.state.Aliases[i].ID = i
	}
}

func cloneAlias(al domain.Alias) domain.Alias {
	al.Addresses = slices.Clone(al.Addresses)
	al.Details = slices.Clone(al.Details)
	return al
}

func cloneState(s State) State {
	out := State{
		Aliases:        make([]domain.Alias, len(s.Aliases)),
		Leases:         slices.Clone(s.Leases),
		ARP:            slices.Clone(s.ARP),
		StaticMappings: slices.Clone(s.StaticMappings),
		System:         s.System,
	}
	for i, al := range s.Aliases {
		out.Aliases[i] = cloneAlias(al)
	}
	return out
}
