// Package api provides the HTTP control plane and the device WebSocket
// listener for the voice gateway.
//
// It exposes fleet status, per-device actions, configuration management
// and the firmware release feed to the admin UI, and upgrades device
// connections on /ws.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardenhall/voicegw/internal/cloud"
	"github.com/ardenhall/voicegw/internal/command"
	"github.com/ardenhall/voicegw/internal/configstore"
	"github.com/ardenhall/voicegw/internal/device"
	"github.com/ardenhall/voicegw/internal/endpoint"
	"github.com/ardenhall/voicegw/internal/infrastructure/config"
	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.ServerConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Bridge   *endpoint.Bridge // nil when no endpoint is configured
	Router   *command.Router
	Store    *configstore.Store
	Defaults *cloud.Defaults // nil when the cloud fetch failed
	Version  string
}

// Server is the HTTP server for the voice gateway: control plane plus
// the device WebSocket listener, sharing one port.
type Server struct {
	cfg      config.ServerConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	registry *device.Registry
	bridge   *endpoint.Bridge
	router   *command.Router
	store    *configstore.Store
	defaults *cloud.Defaults
	version  string
	server   *http.Server
	cancel   context.CancelFunc

	// sessionCtx is the parent context for device sessions started from
	// /ws; cancelled on Close.
	sessionCtx context.Context
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("command router is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("config store is required")
	}
	// Bridge is optional — endpoint commands fail with a spoken error
	// until one is configured. Defaults are optional — the default-backed
	// routes return 404 when the cloud fetch failed.

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		registry: deps.Registry,
		bridge:   deps.Bridge,
		router:   deps.Router,
		store:    deps.Store,
		defaults: deps.Defaults,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// Device sessions started from /ws inherit the server context, so they
// wind down when Close() is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.sessionCtx = srvCtx

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
//
// Device sessions are cancelled, then in-flight requests get up to the
// graceful shutdown timeout before remaining connections are dropped.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("server not started")
	}
	return nil
}
