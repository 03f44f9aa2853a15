package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

type sample struct {
	Name string `validate:"required,alias_name"`
	MAC  string `validate:"omitempty,hw_mac"`
	IP   string `validate:"omitempty,ipv4"`
	Kind string `validate:"omitempty,oneof=firewall dhcp"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{Name: "KIDS", MAC: "aa-bb-cc-dd-ee-ff", IP: "10.0.0.1", Kind: "dhcp"}, ""},
		{"missing name", sample{}, "name is required"},
		{"lowercase name", sample{Name: "kids"}, "name must contain only uppercase letters, digits and underscores"},
		{"bad mac", sample{Name: "A", MAC: "aabbccddeeff"}, "Invalid MAC address format"},
		{"bad ip", sample{Name: "A", IP: "300.0.0.1"}, "ip must be an IPv4 address"},
		{"bad kind", sample{Name: "A", Kind: "nat"}, "kind must be one of: firewall dhcp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestStruct_NonStruct(t *testing.T) {
	err := Struct("not a struct")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNew(t *testing.T) {
	v, err := New()
	assert.NoError(t, err)
	assert.NoError(t, v.Var("LAN_NET", "alias_name"))
	assert.Error(t, v.Var("lan-net", "alias_name"))
}
