package domain

import (
	"fmt"
	"net"
	"strings"
)

// Lease is a DHCP lease reported by the appliance. Read only.
type Lease struct {
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
	Hostname  string `json:"hostname"`
	Starts    string `json:"starts,omitempty"`
	Ends      string `json:"ends,omitempty"`
	State     string `json:"state,omitempty"`
	Interface string `json:"interface,omitempty"`
}

// ARPEntry is a row of the appliance's ARP table.
type ARPEntry struct {
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
	Hostname  string `json:"hostname"`
	Interface string `json:"interface"`
}

// Client is a device seen on the network, merged from leases and the ARP table.
type Client struct {
	MAC       string  `json:"mac"`
	IP        *string `json:"ip"`
	Hostname  string  `json:"hostname"`
	Status    string  `json:"status"`
	Blocked   bool    `json:"blocked"`
	LeaseEnd  string  `json:"leaseEnd,omitempty"`
	Interface string  `json:"interface,omitempty"`
}

// StaticMapping is a DHCP static reservation on one appliance interface.
type StaticMapping struct {
	ID          int    `json:"id"`
	Interface   string `json:"parent_id"`
	MAC         string `json:"mac"`
	IP          string `json:"ipaddr"`
	Hostname    string `json:"hostname"`
	Description string `json:"descr"`
}

// SystemInfo is the subset of appliance status shown on the overview.
type SystemInfo struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
}

// PendingStatus reports whether an appliance subsystem has staged, unapplied changes.
type PendingStatus struct {
	Applied    bool     `json:"applied"`
	Subsystems []string `json:"pending_subsystems"`
}

// Subsystem names accepted by the apply action.
const (
	SubsystemFirewall = "firewall"
	SubsystemDHCP     = "dhcp"
)

// NormalizeMAC validates a colon or dash separated 48-bit MAC address and returns it
// lowercased with colons.
func NormalizeMAC(mac string) (string, error) {
	mac = strings.TrimSpace(mac)
	if len(mac) != 17 {
		return "", NewError(ErrKindValidation, "Invalid MAC address format")
	}
	hw, err := net.ParseMAC(strings.ReplaceAll(mac, "-", ":"))
	if err != nil || len(hw) != 6 {
		return "", NewError(ErrKindValidation, "Invalid MAC address format")
	}
	return hw.String(), nil
}

// SameMAC compares two MAC addresses ignoring case and separator style.
func SameMAC(a, b string) bool {
	na, errA := NormalizeMAC(a)
	nb, errB := NormalizeMAC(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}

// String renders a lease for logs.
func (l Lease) String() string {
	return fmt.Sprintf("%s(%s,%s)", l.Hostname, l.IP, l.MAC)
}
