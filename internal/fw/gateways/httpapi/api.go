// Package httpapi exposes the management services as a JSON API over HTTP.
//
// Every response body is an envelope {"success": bool, "data": ..., "error": "..."}.
// Everything under /api except the login route requires a bearer token issued by
// POST /api/auth/login.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/metrics"
)

// Options wires the API to its services.
type Options struct {
	Blocklist Blocklist
	Clients   Clients
	Groups    Groups
	DHCP      DHCP
	Pending   Pending
	Auth      *Authenticator

	// Limiter is optional; nil disables rate limiting.
	Limiter Limiter
	// Metrics is optional; nil disables HTTP metrics and the /metrics route.
	Metrics *metrics.Registry
	Clock   clock.Clock
	Logger  log.Logger
}

// API is the HTTP handler for the management API.
type API struct {
	blocklist Blocklist
	clients   Clients
	groups    Groups
	dhcp      DHCP
	pending   Pending
	auth      *Authenticator
	limiter   Limiter
	metrics   *metrics.Registry
	clock     clock.Clock
	logger    log.Logger

	router  *mux.Router
	handler http.Handler
}

var _ http.Handler = (*API)(nil)

// NewAPI builds the router and middleware chain.
func NewAPI(opts Options) (*API, error) {
	if opts.Blocklist == nil || opts.Clients == nil || opts.Groups == nil || opts.DHCP == nil || opts.Pending == nil {
		return nil, errors.New("all services are required")
	}
	if opts.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}

	a := &API{
		blocklist: opts.Blocklist,
		clients:   opts.Clients,
		groups:    opts.Groups,
		dhcp:      opts.DHCP,
		pending:   opts.Pending,
		auth:      opts.Auth,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		logger:    opts.Logger,
		router:    mux.NewRouter(),
	}
	a.routes()

	// outermost first
	a.handler = a.withRequestID(a.withAccessLog(a.withHeaders(a.withRateLimit(a.router))))
	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) routes() {
	r := a.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, errRouteMissing)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, errMethod)
	})

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/login", a.handleLogin).Methods(http.MethodPost)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.requireAuth)

	api.HandleFunc("/clients/connected", a.handleConnected).Methods(http.MethodGet)
	api.HandleFunc("/clients/blocked", a.handleBlockedClients).Methods(http.MethodGet)
	api.HandleFunc("/clients/{mac}/block", a.handleBlockDevice).Methods(http.MethodPost)
	api.HandleFunc("/clients/{mac}/unblock", a.handleUnblockDevice).Methods(http.MethodPost)

	api.HandleFunc("/blocked", a.handleBlockedItems).Methods(http.MethodGet)
	api.HandleFunc("/blocked/{identifier}/block", a.handleBlock).Methods(http.MethodPost)
	api.HandleFunc("/blocked/{identifier}/unblock", a.handleUnblock).Methods(http.MethodPost)

	api.HandleFunc("/groups", a.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups", a.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{name}", a.handleGetGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{name}", a.handleUpdateGroup).Methods(http.MethodPut)
	api.HandleFunc("/groups/{name}", a.handleDeleteGroup).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{name}/status", a.handleGroupStatus).Methods(http.MethodGet)
	api.HandleFunc("/groups/{name}/block", a.handleBlockGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups/{name}/unblock", a.handleUnblockGroup).Methods(http.MethodPost)

	api.HandleFunc("/memberships/{identifier}", a.handleMembership).Methods(http.MethodPut)

	api.HandleFunc("/dhcp/static", a.handleListStatic).Methods(http.MethodGet)
	api.HandleFunc("/dhcp/static", a.handleSetStatic).Methods(http.MethodPost)
	api.HandleFunc("/dhcp/static/{mac}", a.handleDeleteStatic).Methods(http.MethodDelete)
	api.HandleFunc("/dhcp/validate-ip", a.handleValidateIP).Methods(http.MethodPost)

	api.HandleFunc("/pending", a.handlePending).Methods(http.MethodGet)
	api.HandleFunc("/pending/apply/{service}", a.handleApply).Methods(http.MethodPost)

	api.HandleFunc("/stats/overview", a.handleOverview).Methods(http.MethodGet)
}

// log returns the API logger tagged with the request's correlation ID.
func (a *API) log(r *http.Request) log.Logger {
	return a.logger.With(map[string]any{"request_id": RequestID(r.Context())})
}
