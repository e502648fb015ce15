package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/findmy-core/internal/bridges/mqttrelay"
	"github.com/nerrad567/findmy-core/internal/fleet"
	"github.com/nerrad567/findmy-core/internal/infrastructure/config"
	"github.com/nerrad567/findmy-core/internal/infrastructure/logging"
	"github.com/nerrad567/findmy-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// RelayStatsProvider reports MQTT relay counters. Satisfied by *mqttrelay.Relay.
type RelayStatsProvider interface {
	Stats() mqttrelay.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Broker   *fleet.Broker
	Service  *fleet.Service
	MQTT     *mqtt.Client       // optional, metrics only
	Relay    RelayStatsProvider // optional, metrics only
	Version  string
}

// Server is the HTTP API server for the find-my core.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub, and
// the notification feed. The server is created with New() and started with
// Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	secCfg        config.SecurityConfig
	logger        *logging.Logger
	broker        *fleet.Broker
	service       *fleet.Service
	mqtt          *mqtt.Client
	relay         RelayStatsProvider
	version       string
	server        *http.Server
	hub           *Hub
	notifications *NotificationCenter
	limiter       *RateLimiter // nil when rate limiting is disabled
	startTime     time.Time
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("fleet broker is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("action service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		broker:    deps.Broker,
		service:   deps.Service,
		mqtt:      deps.MQTT,
		relay:     deps.Relay,
		version:   deps.Version,
		startTime: time.Now(),
	}

	s.hub = NewHub(s.wsCfg, s.logger, s.broker)
	s.notifications = NewNotificationCenter(defaultNotificationTTL)
	s.notifications.SetOnPush(func(n Notification) {
		s.hub.Broadcast(ChannelNotifications, EventNotification, n)
	})

	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(rl.RequestsPerMinute, rl.Burst)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the rate limiter janitor, then launches
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.limiter != nil {
		go s.limiter.Run(srvCtx)
	}

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
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, limiter janitor)
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

// HealthCheck verifies the API server is running and responsive.
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

// Notifications returns the server's notification feed.
func (s *Server) Notifications() *NotificationCenter {
	return s.notifications
}
