package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlias_Membership(t *testing.T) {
	a := Alias{ID: 2, Name: "KIDS", Addresses: []string{"Tablet.lan", "10.0.0.5", ""}, Details: []string{"t", "ip", ""}}

	assert.True(t, a.HasMember("tablet.LAN"))
	assert.False(t, a.HasMember("10.0.0.6"))
	assert.Equal(t, []string{"Tablet.lan", "10.0.0.5"}, a.Members())

	added := a.WithMember("10.0.0.6", "")
	assert.Equal(t, 2, added.ID)
	assert.Equal(t, []string{"Tablet.lan", "10.0.0.5", "10.0.0.6"}, added.Addresses)
	assert.Len(t, added.Details, 3)

	removed := a.WithoutMember("TABLET.lan")
	assert.Equal(t, []string{"10.0.0.5"}, removed.Addresses)
	assert.Equal(t, []string{"ip"}, removed.Details)
}

func TestFindAlias(t *testing.T) {
	aliases := []Alias{{Name: "BLOCKED"}, {Name: "KIDS", ID: 1}}
	got, ok := FindAlias(aliases, "KIDS")
	assert.True(t, ok)
	assert.Equal(t, 1, got.ID)
	_, ok = FindAlias(aliases, "kids")
	assert.False(t, ok)
}

func TestNormalizeMAC(t *testing.T) {
	got, err := NormalizeMAC("AA-BB-CC-DD-EE-FF")
	assert.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", got)

	for _, bad := range []string{"", "aa:bb:cc:dd:ee", "zz:bb:cc:dd:ee:ff", "aabb.ccdd.eeff"} {
		_, err := NormalizeMAC(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}

	assert.True(t, SameMAC("aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF"))
	assert.False(t, SameMAC("aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:00"))
}
