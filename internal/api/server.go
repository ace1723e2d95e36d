// Package api provides the HTTP admin API and WebSocket event stream
// for the RfPlayer bridge.
//
// It exposes the device registry, the profile registry, raw gateway
// command passthrough and a live stream of decoded events. The server
// follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/bridge"
	"github.com/nerrad567/rfplayer-bridge/internal/device"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/config"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeControl is the bridge surface the API needs. Satisfied by
// *bridge.Bridge; mocked in tests.
type BridgeControl interface {
	Send(command string) error
	Pair(protocol, address string) error
	GatewayStats() (rfplayer.Stats, bool)
	ReconnectsTotal() uint64
	SubscribeEvents(buffer int) (<-chan bridge.EventMessage, func())
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Devices  *device.Registry
	Profiles *profiles.Registry
	Bridge   BridgeControl
	Version  string
}

// Server is the HTTP admin server for the RfPlayer bridge.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	devices  *device.Registry
	profiles *profiles.Registry
	bridge   BridgeControl
	version  string
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates an API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile registry is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		devices:  deps.Devices,
		profiles: deps.Profiles,
		bridge:   deps.Bridge,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background
// goroutine. The server is stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	_, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
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

// HealthCheck verifies the API server is running.
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
