package appliance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

const (
	endpointAliases        = "/firewall/aliases"
	endpointAlias          = "/firewall/alias"
	endpointFirewallApply  = "/firewall/apply"
	endpointLeases         = "/status/dhcp_server/leases"
	endpointARP            = "/diagnostics/arp_table"
	endpointSystem         = "/status/system"
	endpointStaticMappings = "/services/dhcp_server/static_mappings"
	endpointStaticMapping  = "/services/dhcp_server/static_mapping"
	endpointDHCPApply      = "/services/dhcp_server/apply"
)

// leaseJSON mirrors a lease row. Older API builds report "state", newer ones
// "active_status".
type leaseJSON struct {
	IP           string `json:"ip"`
	MAC          string `json:"mac"`
	Hostname     string `json:"hostname"`
	Starts       string `json:"starts"`
	Ends         string `json:"ends"`
	State        string `json:"state"`
	ActiveStatus string `json:"active_status"`
	Interface    string `json:"if"`
}

type arpJSON struct {
	IP        string `json:"ip_address"`
	MAC       string `json:"mac_address"`
	Hostname  string `json:"hostname"`
	Interface string `json:"interface"`
}

type aliasPatch struct {
	ID      int      `json:"id"`
	Address []string `json:"address"`
	Detail  []string `json:"detail"`
	Descr   *string  `json:"descr,omitempty"`
}

type aliasCreate struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Descr   string   `json:"descr"`
	Address []string `json:"address"`
	Detail  []string `json:"detail"`
}

// ListAliases returns every firewall alias.
func (c *Client) ListAliases(ctx context.Context) ([]domain.Alias, error) {
	var aliases []domain.Alias
	if err := c.do(ctx, http.MethodGet, endpointAliases, nil, nil, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

// ReplaceAlias overwrites the address and detail arrays of an alias.
func (c *Client) ReplaceAlias(ctx context.Context, update domain.AliasUpdate) error {
	body := aliasPatch{
		ID:      update.ID,
		Address: nonNil(update.Addresses),
		Detail:  nonNil(update.Details),
		Descr:   update.Description,
	}
	return c.do(ctx, http.MethodPatch, endpointAlias, nil, body, nil)
}

// CreateAlias stages a new alias and returns it as stored.
func (c *Client) CreateAlias(ctx context.Context, alias domain.Alias) (domain.Alias, error) {
	body := aliasCreate{
		Name:    alias.Name,
		Type:    alias.Type,
		Descr:   alias.Description,
		Address: nonNil(alias.Addresses),
		Detail:  nonNil(alias.Details),
	}
	var created domain.Alias
	if err := c.do(ctx, http.MethodPost, endpointAlias, nil, body, &created); err != nil {
		return domain.Alias{}, err
	}
	return created, nil
}

// DeleteAlias stages removal of the alias with the given id.
func (c *Client) DeleteAlias(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, endpointAlias, idQuery(id), nil, nil)
}

// ApplySubsystem activates staged changes of the firewall or dhcp subsystem.
func (c *Client) ApplySubsystem(ctx context.Context, name string) error {
	endpoint, err := applyEndpoint(name)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, endpoint, nil, nil, nil)
}

// PendingStatus reports whether the subsystem has unapplied changes.
func (c *Client) PendingStatus(ctx context.Context, subsystem string) (domain.PendingStatus, error) {
	endpoint, err := applyEndpoint(subsystem)
	if err != nil {
		return domain.PendingStatus{}, err
	}
	var st domain.PendingStatus
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &st); err != nil {
		return domain.PendingStatus{}, err
	}
	return st, nil
}

func applyEndpoint(subsystem string) (string, error) {
	switch subsystem {
	case domain.SubsystemFirewall:
		return endpointFirewallApply, nil
	case domain.SubsystemDHCP:
		return endpointDHCPApply, nil
	default:
		return "", domain.NewError(domain.ErrKindValidation, errUnknownSubsystem, subsystem)
	}
}

// ListLeases returns the full DHCP lease table.
func (c *Client) ListLeases(ctx context.Context) ([]domain.Lease, error) {
	var rows []leaseJSON
	q := url.Values{"limit": []string{"0"}, "offset": []string{"0"}}
	if err := c.do(ctx, http.MethodGet, endpointLeases, q, nil, &rows); err != nil {
		return nil, err
	}
	leases := make([]domain.Lease, 0, len(rows))
	for _, r := range rows {
		state := r.State
		if state == "" {
			state = r.ActiveStatus
		}
		leases = append(leases, domain.Lease{
			IP:        r.IP,
			MAC:       r.MAC,
			Hostname:  r.Hostname,
			Starts:    r.Starts,
			Ends:      r.Ends,
			State:     state,
			Interface: r.Interface,
		})
	}
	return leases, nil
}

// ListARP returns the appliance ARP table.
func (c *Client) ListARP(ctx context.Context) ([]domain.ARPEntry, error) {
	var rows []arpJSON
	if err := c.do(ctx, http.MethodGet, endpointARP, nil, nil, &rows); err != nil {
		return nil, err
	}
	entries := make([]domain.ARPEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.ARPEntry(r))
	}
	return entries, nil
}

// SystemInfo returns the appliance hostname, version and uptime.
func (c *Client) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	var info domain.SystemInfo
	if err := c.do(ctx, http.MethodGet, endpointSystem, nil, nil, &info); err != nil {
		return domain.SystemInfo{}, err
	}
	return info, nil
}

// ListStaticMappings returns the DHCP reservations of one interface.
func (c *Client) ListStaticMappings(ctx context.Context, iface string) ([]domain.StaticMapping, error) {
	var mappings []domain.StaticMapping
	q := url.Values{"parent_id": []string{iface}}
	if err := c.do(ctx, http.MethodGet, endpointStaticMappings, q, nil, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

// CreateStaticMapping stages a new reservation.
func (c *Client) CreateStaticMapping(ctx context.Context, m domain.StaticMapping) (domain.StaticMapping, error) {
	var created domain.StaticMapping
	if err := c.do(ctx, http.MethodPost, endpointStaticMapping, nil, m, &created); err != nil {
		return domain.StaticMapping{}, err
	}
	return created, nil
}

// UpdateStaticMapping stages changes to an existing reservation.
func (c *Client) UpdateStaticMapping(ctx context.Context, m domain.StaticMapping) error {
	return c.do(ctx, http.MethodPatch, endpointStaticMapping, nil, m, nil)
}

// DeleteStaticMapping stages removal of a reservation.
func (c *Client) DeleteStaticMapping(ctx context.Context, iface string, id int) error {
	q := url.Values{"parent_id": []string{iface}, "id": []string{strconv.Itoa(id)}}
	return c.do(ctx, http.MethodDelete, endpointStaticMapping, q, nil, nil)
}

// pfSense rejects null arrays.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
