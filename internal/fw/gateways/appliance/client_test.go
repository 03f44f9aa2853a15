package appliance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-fwmgr/internal/fw/common/metrics"
	"github.com/haukened/rr-fwmgr/internal/fw/domain"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
	user   string
	pass   string
}

// fakeAppliance answers every request with data and records what it saw.
func fakeAppliance(t *testing.T, status int, data any) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		rec.user, rec.pass, _ = r.BasicAuth()
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		calls = append(calls, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		msg := ""
		if status >= 400 {
			msg = "Field `id` is required."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    status,
			"status":  http.StatusText(status),
			"message": msg,
			"data":    data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, srv *httptest.Server, reg *metrics.Registry) *Client {
	t.Helper()
	c, err := NewClient(Options{URL: srv.URL + "/", Username: "admin", Password: "secret", Metrics: reg})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.EqualError(t, err, errURLRequired)

	_, err = NewClient(Options{URL: "ftp://fw.local"})
	assert.Error(t, err)

	c, err := NewClient(Options{URL: "https://fw.local", InsecureTLS: true})
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	tr, ok := c.http.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestListAliases(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, []map[string]any{
		{"id": 0, "name": "BLOCKED", "type": "host", "descr": "blocked", "address": []string{"10.0.0.5"}, "detail": []string{"note"}},
		{"id": 1, "name": "LAN_NET", "type": "network", "address": []string{"10.0.0.0/24"}, "detail": []string{""}},
	})
	reg := metrics.New()
	c := newTestClient(t, srv, reg)

	aliases, err := c.ListAliases(context.Background())
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, domain.Alias{ID: 0, Name: "BLOCKED", Type: "host", Description: "blocked", Addresses: []string{"10.0.0.5"}, Details: []string{"note"}}, aliases[0])

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/api/v2/firewall/aliases", call.path)
	assert.Equal(t, "admin", call.user)
	assert.Equal(t, "secret", call.pass)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplianceRequests.WithLabelValues(endpointAliases, metrics.OutcomeOK)))
}

func TestReplaceAlias_SendsFullArrays(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, nil)
	c := newTestClient(t, srv, nil)

	err := c.ReplaceAlias(context.Background(), domain.AliasUpdate{ID: 4, Name: "BLOCKED"})
	require.NoError(t, err)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPatch, call.method)
	assert.Equal(t, "/api/v2/firewall/alias", call.path)
	assert.Equal(t, float64(4), call.body["id"])
	assert.Equal(t, []any{}, call.body["address"])
	assert.Equal(t, []any{}, call.body["detail"])
	assert.NotContains(t, call.body, "descr")
}

func TestCreateAndDeleteAlias(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, map[string]any{"id": 7, "name": "KIDS", "type": "host"})
	c := newTestClient(t, srv, nil)

	created, err := c.CreateAlias(context.Background(), domain.Alias{Name: "KIDS", Type: "host", Description: "kids"})
	require.NoError(t, err)
	assert.Equal(t, 7, created.ID)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "kids", (*calls)[0].body["descr"])

	require.NoError(t, c.DeleteAlias(context.Background(), 7))
	assert.Equal(t, http.MethodDelete, (*calls)[1].method)
	assert.Equal(t, "id=7", (*calls)[1].query)
}

func TestApplyAndPending(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, map[string]any{"applied": false, "pending_subsystems": []string{"aliases"}})
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	require.NoError(t, c.ApplySubsystem(ctx, domain.SubsystemFirewall))
	require.NoError(t, c.ApplySubsystem(ctx, domain.SubsystemDHCP))
	st, err := c.PendingStatus(ctx, domain.SubsystemFirewall)
	require.NoError(t, err)
	assert.False(t, st.Applied)
	assert.Equal(t, []string{"aliases"}, st.Subsystems)

	assert.Equal(t, "/api/v2/firewall/apply", (*calls)[0].path)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/api/v2/services/dhcp_server/apply", (*calls)[1].path)
	assert.Equal(t, http.MethodGet, (*calls)[2].method)

	err = c.ApplySubsystem(ctx, "nat")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, *calls, 3)
}

func TestListLeases(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, []map[string]any{
		{"ip": "10.0.0.30", "mac": "aa:bb:cc:00:00:02", "hostname": "tablet", "ends": "2024/05/01 13:00:00", "active_status": "active", "if": "lan"},
		{"ip": "10.0.0.31", "mac": "aa:bb:cc:00:00:03", "state": "expired"},
	})
	c := newTestClient(t, srv, nil)

	leases, err := c.ListLeases(context.Background())
	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, "active", leases[0].State)
	assert.Equal(t, "lan", leases[0].Interface)
	assert.Equal(t, "expired", leases[1].State)
	assert.Equal(t, "/api/v2/status/dhcp_server/leases", (*calls)[0].path)
	assert.Equal(t, "limit=0&offset=0", (*calls)[0].query)
}

func TestListARP(t *testing.T) {
	srv, _ := fakeAppliance(t, http.StatusOK, []map[string]any{
		{"ip_address": "10.0.0.50", "mac_address": "aa:bb:cc:00:00:50", "hostname": "printer", "interface": "igb1"},
	})
	c := newTestClient(t, srv, nil)

	entries, err := c.ListARP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ARPEntry{{IP: "10.0.0.50", MAC: "aa:bb:cc:00:00:50", Hostname: "printer", Interface: "igb1"}}, entries)
}

func TestSystemInfo(t *testing.T) {
	srv, _ := fakeAppliance(t, http.StatusOK, map[string]any{"hostname": "fw", "version": "2.7.2", "uptime": "3 days"})
	c := newTestClient(t, srv, nil)

	info, err := c.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SystemInfo{Hostname: "fw", Version: "2.7.2", Uptime: "3 days"}, info)
}

func TestStaticMappings(t *testing.T) {
	srv, calls := fakeAppliance(t, http.StatusOK, []map[string]any{
		{"id": 0, "parent_id": "lan", "mac": "aa:bb:cc:00:00:10", "ipaddr": "192.168.1.10", "hostname": "nas"},
	})
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	mappings, err := c.ListStaticMappings(ctx, "lan")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "192.168.1.10", mappings[0].IP)
	assert.Equal(t, "parent_id=lan", (*calls)[0].query)

	require.NoError(t, c.UpdateStaticMapping(ctx, domain.StaticMapping{ID: 0, Interface: "lan", MAC: "aa:bb:cc:00:00:10", IP: "192.168.1.11"}))
	assert.Equal(t, http.MethodPatch, (*calls)[1].method)
	assert.Equal(t, "192.168.1.11", (*calls)[1].body["ipaddr"])
	assert.Equal(t, "lan", (*calls)[1].body["parent_id"])

	require.NoError(t, c.DeleteStaticMapping(ctx, "lan", 0))
	assert.Equal(t, "id=0&parent_id=lan", (*calls)[2].query)
}

func TestErrorStatus_IsUpstreamUnavailable(t *testing.T) {
	srv, _ := fakeAppliance(t, http.StatusBadRequest, nil)
	reg := metrics.New()
	c := newTestClient(t, srv, reg)

	_, err := c.ListAliases(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "Field `id` is required.")
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ApplianceRequests.WithLabelValues(endpointAliases, metrics.OutcomeError)))
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv, nil)

	_, err := c.ListLeases(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), http.StatusText(http.StatusBadGateway))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.SystemInfo(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestTimeoutAppliesToInjectedHTTPClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(Options{URL: srv.URL, Timeout: 50 * time.Millisecond, HTTPClient: &http.Client{}})
	require.NoError(t, err)

	started := time.Now()
	_, err = c.ListLeases(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestMalformedData(t *testing.T) {
	srv, _ := fakeAppliance(t, http.StatusOK, "not-a-list")
	c := newTestClient(t, srv, nil)

	_, err := c.ListAliases(context.Background())
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
