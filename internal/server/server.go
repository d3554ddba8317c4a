// Package server assembles the relay from configuration and runs its listeners.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/chat_relay/internal/api"
	"github.com/lewisedginton/chat_relay/internal/completion"
	appconfig "github.com/lewisedginton/chat_relay/internal/config"
	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/health"
	"github.com/lewisedginton/chat_relay/pkg/health/checkers"
	"github.com/lewisedginton/chat_relay/pkg/httpmiddleware"
	"github.com/lewisedginton/chat_relay/pkg/logger"
	"github.com/lewisedginton/chat_relay/pkg/metrics"
	"github.com/lewisedginton/chat_relay/pkg/utils"
)

const shutdownGrace = 10 * time.Second

// Server owns the relay's components and listeners.
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	metrics    *metrics.Metrics
	store      session.Store
	closeStore func() error
	hub        *transport.Hub
	service    *relay.Service
	health     *health.Checker
	handler    http.Handler
}

// Options overrides components built from configuration, mainly for tests.
type Options struct {
	Store     session.Store
	Completer relay.Completer
	Pusher    transport.Pusher
}

// New creates a Server with every component initialized.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	return NewWithOptions(ctx, cfg, log, Options{})
}

// NewWithOptions is New with some components supplied by the caller.
func NewWithOptions(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, opts Options) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnableRelayMetrics, log),
		closeStore: func() error { return nil },
	}

	s.store = opts.Store
	if s.store == nil {
		store, closeStore, err := NewStore(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
		s.store, s.closeStore = store, closeStore
	}

	completer := opts.Completer
	if completer == nil {
		client, err := completion.NewFromConfig(ctx, cfg.Completion, log, completion.WithFallbackHook(s.metrics.CompletionFallback))
		if err != nil {
			_ = s.closeStore()
			return nil, fmt.Errorf("failed to create completion client: %w", err)
		}
		completer = client
	}

	pusher := opts.Pusher
	if pusher == nil {
		var err error
		if pusher, err = s.createPusher(ctx); err != nil {
			_ = s.closeStore()
			return nil, err
		}
	}

	service, err := relay.NewService(relay.Config{
		Store:     s.store,
		Completer: completer,
		Pusher:    pusher,
		Logger:    log,
		Recorder:  s.metrics,
		Sentinel:  cfg.Relay.Sentinel,
	})
	if err != nil {
		_ = s.closeStore()
		return nil, fmt.Errorf("failed to create relay service: %w", err)
	}
	s.service = service

	if s.hub != nil {
		s.hub.SetHandler(api.NewFrameHandler(service, s.hub, log))
	}

	s.health = s.createHealthChecker()
	s.handler = s.createRouter()
	return s, nil
}

// createPusher returns the hub for the websocket backend or an API Gateway
// pusher for the apigateway backend.
func (s *Server) createPusher(ctx context.Context) (transport.Pusher, error) {
	tc := s.cfg.Transport

	switch tc.Backend {
	case appconfig.TransportWebSocket:
		s.hub = transport.NewHub(transport.HubConfig{
			PingInterval:   tc.WebSocket.PingInterval,
			PongWait:       tc.WebSocket.PongWait(),
			WriteTimeout:   tc.WebSocket.WriteTimeout,
			ReadLimitBytes: tc.WebSocket.ReadLimitBytes,
		}, s.log)
		s.log.Info("Using self-hosted WebSocket transport", logger.StringField("path", tc.WebSocket.Path))
		return s.hub, nil

	case appconfig.TransportAPIGateway:
		awsCfg, err := LoadAWSConfig(ctx, s.cfg.AWS)
		if err != nil {
			return nil, err
		}
		s.log.Info("Using API Gateway WebSocket transport", logger.StringField("endpoint", tc.APIGatewayEndpoint))
		client := transport.NewManagementClient(awsCfg, tc.APIGatewayEndpoint)
		return transport.NewAPIGatewayPusher(client, s.log), nil

	default:
		return nil, fmt.Errorf("unsupported transport backend: %s", tc.Backend)
	}
}

func (s *Server) createHealthChecker() *health.Checker {
	checker := health.New(
		health.WithTimeout(s.cfg.Health.Timeout),
		health.WithFailureThreshold(s.cfg.Health.FailureThreshold),
		health.WithLogger(s.log),
	)
	checker.AddLivenessCheck(health.NewCheckFunc("relay", func(context.Context) error { return nil }))
	if pinger, ok := s.store.(session.Pinger); ok {
		checker.AddReadinessCheck(checkers.NewPingChecker(pinger, "store"))
	}
	return checker
}

func (s *Server) middlewareConfig() httpmiddleware.Config {
	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	mw.EnableSecurity = s.cfg.Security.SecureHeaders
	mw.MaxBodyBytes = s.cfg.Security.MaxRequestSize
	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	}
	if s.cfg.HTTP.StripPrefix != "" {
		mw.StripPrefix = s.cfg.HTTP.StripPrefix
		mw.EnableStripPrefix = true
	}
	mw.Extra = append(mw.Extra, s.metrics.HTTPMiddleware())
	return mw
}

func (s *Server) createRouter() http.Handler {
	rc := api.RouterConfig{
		Service:    s.service,
		Logger:     s.log,
		Middleware: s.middlewareConfig(),
	}
	if s.hub != nil {
		rc.WebSocket = s.hub
		rc.WebSocketPath = s.cfg.Transport.WebSocket.Path
	}
	return api.NewRouter(rc)
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// HealthHandler returns the health routes served on the health port.
func (s *Server) HealthHandler() http.Handler {
	return s.health.Routes(health.Paths{
		Liveness:  s.cfg.Health.LivenessPath,
		Readiness: s.cfg.Health.ReadinessPath,
		Combined:  s.cfg.Health.CombinedPath,
	})
}

// Service returns the relay service.
func (s *Server) Service() *relay.Service { return s.service }

// Run serves until ctx is cancelled or a listener fails, then shuts every
// listener down and releases the store.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hc := s.cfg.HTTP
	chans := []chan error{
		utils.ListenAndServe(ctx, &http.Server{
			Addr:              hc.Addr(),
			Handler:           s.handler,
			ReadTimeout:       hc.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      hc.WriteTimeout,
			IdleTimeout:       hc.IdleTimeout,
			MaxHeaderBytes:    hc.MaxHeaderBytes,
		}, shutdownGrace, s.log),
	}

	if s.cfg.Health.Enabled {
		chans = append(chans, utils.ListenAndServe(ctx, &http.Server{
			Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
			Handler:           s.HealthHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}, shutdownGrace, s.log))
	} else {
		s.log.Info("Health checks disabled")
	}

	if s.cfg.Metrics.ExposeMetrics {
		chans = append(chans, s.metrics.Listen(ctx, s.cfg.Metrics.Port))
	}

	s.log.Info("Relay started",
		logger.StringField("addr", hc.Addr()),
		logger.StringField("store", s.cfg.Store.Backend),
		logger.StringField("transport", s.cfg.Transport.Backend))

	var result error
	for err := range utils.MergeErrorChans(chans...) {
		s.log.Error("Listener failed", logger.ErrorField(err))
		result = multierror.Append(result, err)
		cancel()
	}

	if err := s.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.log.Info("Relay stopped")
	return result
}

// Close disconnects websocket clients and closes the store.
func (s *Server) Close() error {
	var result error
	if s.hub != nil {
		if err := s.hub.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing websocket hub: %w", err))
		}
	}
	if err := s.closeStore(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing session store: %w", err))
	}
	return result
}
