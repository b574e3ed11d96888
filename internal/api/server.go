// Package api provides the HTTP REST API and WebSocket server for the codec bridge.
//
// It exposes the reconciled codec state, the overlay export, and control
// endpoints to overlay tools, automation scripts and operator dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/tieline-bridge/internal/bridges/tieline"
	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CodecReader is the read side of the codec client.
// Satisfied by *codec.Client.
type CodecReader interface {
	State() codec.DeviceState
	IsConnected() bool
	IsPolling() bool
	AudioStatistics(ctx context.Context) (json.RawMessage, error)
}

// CommandExecutor runs control commands. Satisfied by *tieline.Bridge, so
// REST and MQTT commands share one code path.
type CommandExecutor interface {
	ExecuteCommand(cmd tieline.CommandMessage) error
}

// HealthSource reports bridge health. Satisfied by *tieline.HealthReporter.
type HealthSource interface {
	Status() (tieline.HealthStatus, string)
	Statistics() tieline.BridgeStatistics
	Uptime() time.Duration
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Codec       CodecReader
	Commands    CommandExecutor // optional: control endpoints return 503 without it
	Health      HealthSource    // optional
	ExternalHub *Hub            // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for the codec bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	codec       CodecReader
	commands    CommandExecutor
	health      HealthSource
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, codec)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		codec:    deps.Codec,
		commands: deps.Commands,
		health:   deps.Health,
		version:  deps.Version,
	}

	// The bridge broadcasts into the hub, so it is usually created before
	// the server and injected here.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub unless one was injected,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
