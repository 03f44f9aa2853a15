package groups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
	"github.com/haukened/rr-fwmgr/internal/fw/repos/memappliance"
	"github.com/haukened/rr-fwmgr/internal/fw/services/blocklist"
)

var testNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memappliance.Appliance) {
	t.Helper()
	app := memappliance.New(memappliance.State{
		Aliases: []domain.Alias{
			{Name: "BLOCKED", Type: domain.AliasTypeHost, Addresses: []string{"10.0.0.20"}, Details: []string{""}},
			{Name: "KIDS", Type: domain.AliasTypeHost, Description: "kids", Addresses: []string{"10.0.0.20", "10.0.0.21"}, Details: []string{"laptop", "phone"}},
			{Name: "LAN_NET", Type: domain.AliasTypeNetwork, Addresses: []string{"10.0.0.0/24"}},
		},
	})
	clk := &clock.MockClock{CurrentTime: testNow}
	bl, err := blocklist.NewService(blocklist.Options{Client: app, Clock: clk})
	require.NoError(t, err)
	svc, err := NewService(Options{Client: app, Blocklist: bl, Clock: clk})
	require.NoError(t, err)
	return svc, app
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)

	groups, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "KIDS", groups[1].Name)
	assert.Equal(t, domain.GroupStatusPartial, groups[1].BlockStatus.Status)
	assert.Equal(t, 1, groups[1].BlockStatus.IndividualBlocks)
}

func TestGetAndStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.Get(ctx, "KIDS")
	require.NoError(t, err)
	assert.Equal(t, "kids", g.Description)

	_, err = svc.Get(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Block(ctx, "KIDS")
	require.NoError(t, err)
	st, err := svc.Status(ctx, "KIDS")
	require.NoError(t, err)
	assert.Equal(t, domain.GroupStatusBlocked, st.Status)
}

func TestCreate(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{Name: " GUESTS ", Description: "guests", Members: []string{"10.0.0.50", " ", "10.0.0.50", "phone"}})
	require.NoError(t, err)
	assert.Equal(t, "GUESTS", created.Name)
	assert.Equal(t, domain.AliasTypeHost, created.Type)

	a, ok := app.Alias("GUESTS")
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.50", "phone"}, a.Addresses)
	assert.Equal(t, []string{"Added on 2024-06-01T08:30:00Z", "Added on 2024-06-01T08:30:00Z"}, a.Details)
	assert.Equal(t, 0, app.Applies(domain.SubsystemFirewall), "alias edits are staged")

	_, err = svc.Create(ctx, CreateRequest{Name: "guests"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, CreateRequest{Name: "GUESTS"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdate(t *testing.T) {
	svc, app := newTestService(t)
	descr := "children"

	updated, err := svc.Update(context.Background(), "KIDS", UpdateRequest{Description: &descr, Members: []string{"10.0.0.21", "10.0.0.22"}})
	require.NoError(t, err)
	assert.Equal(t, "children", updated.Description)

	a, _ := app.Alias("KIDS")
	assert.Equal(t, []string{"10.0.0.21", "10.0.0.22"}, a.Addresses)
	assert.Equal(t, []string{"phone", "Added on 2024-06-01T08:30:00Z"}, a.Details)
	assert.Equal(t, "children", a.Description)
}

func TestUpdate_KeepsDescriptionWhenNil(t *testing.T) {
	svc, app := newTestService(t)

	_, err := svc.Update(context.Background(), "KIDS", UpdateRequest{Members: nil})
	require.NoError(t, err)
	a, _ := app.Alias("KIDS")
	assert.Equal(t, "kids", a.Description)
	assert.Empty(t, a.Addresses)
}

func TestUpdateDelete_Protected(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "BLOCKED", UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, svc.Delete(ctx, "LAN_NET"), domain.ErrValidation)
	assert.ErrorIs(t, svc.Delete(ctx, "NOPE"), domain.ErrNotFound)
	assert.Equal(t, 0, app.Calls(memappliance.OpReplaceAlias))
	assert.Equal(t, 0, app.Calls(memappliance.OpDeleteAlias))
}

func TestDelete(t *testing.T) {
	svc, app := newTestService(t)

	require.NoError(t, svc.Delete(context.Background(), "KIDS"))
	_, ok := app.Alias("KIDS")
	assert.False(t, ok)
}

func TestBlockUnblock(t *testing.T) {
	svc, app := newTestService(t)
	ctx := context.Background()

	res, err := svc.Block(ctx, "KIDS")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	blocked, _ := app.Alias("BLOCKED")
	assert.Contains(t, blocked.Addresses, "KIDS")

	res, err = svc.Unblock(ctx, "KIDS")
	require.NoError(t, err)
	assert.Equal(t, domain.MsgUnblocked, res.Message)

	_, err = svc.Block(ctx, "kids")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Unblock(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Block(ctx, "MISSING")
	assert.ErrorIs(t, err, domain.ErrAliasNotFound)
}

func TestList_UpstreamFailure(t *testing.T) {
	svc, app := newTestService(t)
	app.FailOn(memappliance.OpListAliases, errors.New("down"))

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
