package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/rr-fwmgr/internal/fw/common/clock"
	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
	"github.com/haukened/rr-fwmgr/internal/fw/common/metrics"
	"github.com/haukened/rr-fwmgr/internal/fw/config"
	"github.com/haukened/rr-fwmgr/internal/fw/gateways/appliance"
	"github.com/haukened/rr-fwmgr/internal/fw/gateways/httpapi"
	"github.com/haukened/rr-fwmgr/internal/fw/repos/memappliance"
	"github.com/haukened/rr-fwmgr/internal/fw/repos/ratelimit"
	"github.com/haukened/rr-fwmgr/internal/fw/services/blocklist"
	"github.com/haukened/rr-fwmgr/internal/fw/services/clients"
	"github.com/haukened/rr-fwmgr/internal/fw/services/dhcp"
	"github.com/haukened/rr-fwmgr/internal/fw/services/groups"
	"github.com/haukened/rr-fwmgr/internal/fw/services/pending"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-fwmgrd"

	defaultShutdownTimeout = 10 * time.Second
)

// applianceBackend is every port the services consume from the appliance.
type applianceBackend interface {
	blocklist.ApplianceClient
	clients.ApplianceReader
	groups.ApplianceClient
	dhcp.ApplianceClient
	pending.ApplianceClient
}

var (
	_ applianceBackend = (*appliance.Client)(nil)
	_ applianceBackend = (*memappliance.Appliance)(nil)
)

// Application holds all the components of the management daemon
type Application struct {
	config  *config.AppConfig
	server  *httpapi.Server
	metrics *metrics.Registry
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.Log.Level,
		"port":          cfg.HTTP.Port,
		"driver":        cfg.Appliance.Driver,
		"appliance_url": cfg.Appliance.URL,
		"blocked_alias": cfg.Appliance.BlockedAlias,
	}, "Starting "+appName)

	// Build application with all dependencies
	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	// Shared clock for tokens, annotations and rate limit windows
	clk := clock.RealClock{}
	logger := log.GetLogger()
	reg := metrics.New()

	backend, err := buildAppliance(cfg, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build appliance gateway: %w", err)
	}

	svc, err := buildServices(cfg, backend, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}

	limiter, err := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Clients, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	auth, err := httpapi.NewAuthenticator(cfg.Auth.AdminPassword, cfg.Auth.SigningKey(), cfg.Auth.TokenTTL, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	api, err := httpapi.NewAPI(httpapi.Options{
		Blocklist: svc.blocklist,
		Clients:   svc.clients,
		Groups:    svc.groups,
		DHCP:      svc.dhcp,
		Pending:   svc.pending,
		Auth:      auth,
		Limiter:   limiter,
		Metrics:   reg,
		Clock:     clk,
		Logger:    logger.With(map[string]any{"component": "httpapi"}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP API: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.ServerOptions{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	return &Application{
		config:  cfg,
		server:  server,
		metrics: reg,
	}, nil
}

// buildAppliance selects the appliance backend for the configured driver
func buildAppliance(cfg *config.AppConfig, reg *metrics.Registry, logger log.Logger) (applianceBackend, error) {
	switch cfg.Appliance.Driver {
	case config.DriverMemory:
		log.Warn(map[string]any{"driver": cfg.Appliance.Driver}, "Using in-memory appliance; changes are not persisted")
		return memappliance.New(memappliance.DefaultState(cfg.Appliance.BlockedAlias)), nil
	case config.DriverPfSense:
		client, err := appliance.NewClient(appliance.Options{
			URL:         cfg.Appliance.URL,
			Username:    cfg.Appliance.Username,
			Password:    cfg.Appliance.Password,
			InsecureTLS: cfg.Appliance.InsecureTLS,
			Timeout:     cfg.Appliance.Timeout,
			Logger:      logger.With(map[string]any{"component": "appliance"}),
			Metrics:     reg,
		})
		if err != nil {
			return nil, err
		}
		log.Info(map[string]any{
			"url":          cfg.Appliance.URL,
			"timeout":      cfg.Appliance.Timeout,
			"insecure_tls": cfg.Appliance.InsecureTLS,
		}, "Appliance client configured")
		return client, nil
	default:
		return nil, fmt.Errorf("unknown appliance driver %q", cfg.Appliance.Driver)
	}
}

// services holds all service implementations
type services struct {
	blocklist *blocklist.Service
	clients   *clients.Service
	groups    *groups.Service
	dhcp      *dhcp.Service
	pending   *pending.Service
}

// buildServices creates the service layer over the appliance backend
func buildServices(cfg *config.AppConfig, backend applianceBackend, clk clock.Clock, logger log.Logger) (*services, error) {
	bl, err := blocklist.NewService(blocklist.Options{
		Client:           backend,
		Clock:            clk,
		Logger:           logger.With(map[string]any{"component": "blocklist"}),
		BlockedAlias:     cfg.Appliance.BlockedAlias,
		ProtectedAliases: cfg.Appliance.ProtectedAliases,
	})
	if err != nil {
		return nil, err
	}

	cl, err := clients.NewService(clients.Options{
		Appliance: backend,
		Blocked:   bl,
		Logger:    logger.With(map[string]any{"component": "clients"}),
	})
	if err != nil {
		return nil, err
	}

	gr, err := groups.NewService(groups.Options{
		Client:    backend,
		Blocklist: bl,
		Clock:     clk,
		Logger:    logger.With(map[string]any{"component": "groups"}),
	})
	if err != nil {
		return nil, err
	}

	dh, err := dhcp.NewService(dhcp.Options{
		Client:    backend,
		Logger:    logger.With(map[string]any{"component": "dhcp"}),
		Interface: cfg.Appliance.DHCPInterface,
		Subnet:    cfg.DHCP.Subnet,
		PoolStart: cfg.DHCP.PoolStart,
		PoolEnd:   cfg.DHCP.PoolEnd,
	})
	if err != nil {
		return nil, err
	}

	pe, err := pending.NewService(backend, logger.With(map[string]any{"component": "pending"}))
	if err != nil {
		return nil, err
	}

	log.Info(map[string]any{
		"blocked_alias":     cfg.Appliance.BlockedAlias,
		"protected_aliases": cfg.Appliance.ProtectedAliases,
		"dhcp_interface":    cfg.Appliance.DHCPInterface,
		"dhcp_subnet":       cfg.DHCP.Subnet,
	}, "Services configured")

	return &services{blocklist: bl, clients: cl, groups: gr, dhcp: dh, pending: pe}, nil
}

// Run starts the HTTP API and blocks until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()

	if err := app.server.Start(serveCtx); err != nil {
		return fmt.Errorf("failed to start HTTP API: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.server.Address(),
		"transport": "http",
	}, "Management API started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout, "error": err}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info(nil, "Graceful shutdown completed")
	return nil
}
