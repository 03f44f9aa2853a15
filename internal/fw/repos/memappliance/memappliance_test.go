package memappliance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

func newTestAppliance() *Appliance {
	return New(State{
		Aliases: []domain.Alias{
			{ID: 7, Name: "BLOCKED", Type: domain.AliasTypeHost, Addresses: []string{"10.0.0.5"}, Details: []string{"note"}},
			{ID: 9, Name: "KIDS", Type: domain.AliasTypeHost},
			{Name: "LAN_NET", Type: domain.AliasTypeNetwork},
		},
		Leases: []domain.Lease{{IP: "10.0.0.10", MAC: "aa:bb:cc:dd:ee:ff", Hostname: "laptop"}},
	})
}

func TestNew_RenumbersAliases(t *testing.T) {
	a := newTestAppliance()
	aliases, err := a.ListAliases(context.Background())
	require.NoError(t, err)
	for i, al := range aliases {
		assert.Equal(t, i, al.ID)
	}
}

func TestListAliases_ReturnsCopies(t *testing.T) {
	a := newTestAppliance()
	aliases, err := a.ListAliases(context.Background())
	require.NoError(t, err)
	aliases[0].Addresses[0] = "mutated"

	again, err := a.ListAliases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", again[0].Addresses[0])
}

func TestReplaceAlias(t *testing.T) {
	a := newTestAppliance()
	ctx := context.Background()
	descr := "new description"

	err := a.ReplaceAlias(ctx, domain.AliasUpdate{ID: 0, Addresses: []string{"1.1.1.1"}, Details: []string{"x"}, Description: &descr})
	require.NoError(t, err)

	al, ok := a.Alias("BLOCKED")
	require.True(t, ok)
	assert.Equal(t, []string{"1.1.1.1"}, al.Addresses)
	assert.Equal(t, []string{"x"}, al.Details)
	assert.Equal(t, descr, al.Description)

	st, err := a.PendingStatus(ctx, domain.SubsystemFirewall)
	require.NoError(t, err)
	assert.False(t, st.Applied)
	assert.Equal(t, []string{"aliases"}, st.Subsystems)

	err = a.ReplaceAlias(ctx, domain.AliasUpdate{ID: 42})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplySubsystem_ClearsPending(t *testing.T) {
	a := newTestAppliance()
	ctx := context.Background()
	require.NoError(t, a.ReplaceAlias(ctx, domain.AliasUpdate{ID: 1}))
	require.NoError(t, a.ApplySubsystem(ctx, domain.SubsystemFirewall))

	st, err := a.PendingStatus(ctx, domain.SubsystemFirewall)
	require.NoError(t, err)
	assert.True(t, st.Applied)
	assert.Empty(t, st.Subsystems)
	assert.Equal(t, 1, a.Applies(domain.SubsystemFirewall))
	assert.Equal(t, 0, a.Applies(domain.SubsystemDHCP))
}

func TestCreateAndDeleteAlias(t *testing.T) {
	a := newTestAppliance()
	ctx := context.Background()

	created, err := a.CreateAlias(ctx, domain.Alias{Name: "GUESTS", Type: domain.AliasTypeHost})
	require.NoError(t, err)
	assert.Equal(t, 3, created.ID)

	_, err = a.CreateAlias(ctx, domain.Alias{Name: "GUESTS"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, a.DeleteAlias(ctx, 1))
	g, ok := a.Alias("GUESTS")
	require.True(t, ok)
	assert.Equal(t, 2, g.ID, "ids shift down after a delete")
	_, ok = a.Alias("KIDS")
	assert.False(t, ok)

	assert.ErrorIs(t, a.DeleteAlias(ctx, 99), domain.ErrNotFound)
}

func TestStaticMappings(t *testing.T) {
	a := New(State{})
	ctx := context.Background()

	m1, err := a.CreateStaticMapping(ctx, domain.StaticMapping{Interface: "lan", MAC: "aa:aa:aa:aa:aa:01", IP: "192.168.1.10"})
	require.NoError(t, err)
	m2, err := a.CreateStaticMapping(ctx, domain.StaticMapping{Interface: "lan", MAC: "aa:aa:aa:aa:aa:02", IP: "192.168.1.11"})
	require.NoError(t, err)
	_, err = a.CreateStaticMapping(ctx, domain.StaticMapping{Interface: "opt1", MAC: "aa:aa:aa:aa:aa:03"})
	require.NoError(t, err)
	assert.Equal(t, 0, m1.ID)
	assert.Equal(t, 1, m2.ID)

	m2.Hostname = "printer"
	require.NoError(t, a.UpdateStaticMapping(ctx, m2))

	lan, err := a.ListStaticMappings(ctx, "lan")
	require.NoError(t, err)
	require.Len(t, lan, 2)
	assert.Equal(t, "printer", lan[1].Hostname)

	require.NoError(t, a.DeleteStaticMapping(ctx, "lan", 0))
	lan, err = a.ListStaticMappings(ctx, "lan")
	require.NoError(t, err)
	require.Len(t, lan, 1)
	assert.Equal(t, 0, lan[0].ID)
	assert.Equal(t, "printer", lan[0].Hostname)

	assert.ErrorIs(t, a.DeleteStaticMapping(ctx, "lan", 5), domain.ErrNotFound)
	assert.ErrorIs(t, a.UpdateStaticMapping(ctx, domain.StaticMapping{Interface: "lan", ID: 5}), domain.ErrNotFound)

	st, err := a.PendingStatus(ctx, domain.SubsystemDHCP)
	require.NoError(t, err)
	assert.False(t, st.Applied)
}

func TestFailOn(t *testing.T) {
	a := newTestAppliance()
	ctx := context.Background()
	boom := errors.New("boom")

	a.FailOn(OpListLeases, boom)
	_, err := a.ListLeases(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.Calls(OpListLeases))

	a.FailOn(OpListLeases, nil)
	leases, err := a.ListLeases(ctx)
	require.NoError(t, err)
	assert.Len(t, leases, 1)
	assert.Equal(t, 2, a.Calls(OpListLeases))
}

func TestCanceledContext(t *testing.T) {
	a := newTestAppliance()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.SystemInfo(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultState(t *testing.T) {
	a := New(DefaultState("BLOCKED"))
	al, ok := a.Alias("BLOCKED")
	require.True(t, ok)
	assert.Empty(t, al.Addresses)
	lan, ok := a.Alias("LAN_NET")
	require.True(t, ok)
	assert.Equal(t, domain.AliasTypeNetwork, lan.Type)
}

func TestSetLeasesAndSnapshot(t *testing.T) {
	a := newTestAppliance()
	a.SetLeases([]domain.Lease{{IP: "10.0.0.1", Hostname: "a"}, {IP: "10.0.0.2", Hostname: "b"}})
	snap := a.Snapshot()
	assert.Len(t, snap.Leases, 2)
	snap.Aliases[0].Name = "CHANGED"
	_, ok := a.Alias("BLOCKED")
	assert.True(t, ok)
}
