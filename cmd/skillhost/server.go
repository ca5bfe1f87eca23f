package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/skillhost/api/handlers"
	"github.com/BaSui01/skillhost/bot"
	"github.com/BaSui01/skillhost/config"
	"github.com/BaSui01/skillhost/internal/metrics"
	"github.com/BaSui01/skillhost/internal/server"
	"github.com/BaSui01/skillhost/skill"
	"github.com/BaSui01/skillhost/state"
)

// =============================================================================
// Server
// =============================================================================

// Server assembles the bot, its state store and the HTTP surface.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	store    state.Store
	sessions *state.Manager
	rootBot  *bot.RootBot
	outbox   *bot.Outbox

	activityHandler *handlers.ActivityHandler
	healthHandler   *handlers.HealthHandler

	collector *metrics.Collector

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// Startup
// =============================================================================

// Start wires all components and starts the HTTP and metrics servers.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("skillhost", prometheus.DefaultRegisterer, s.logger)

	if err := s.initBot(); err != nil {
		return fmt.Errorf("failed to init bot: %w", err)
	}

	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("target_skill", s.cfg.Bot.TargetSkillID),
		zap.String("state_store", s.cfg.State.Type),
	)

	return nil
}

// =============================================================================
// Initialization
// =============================================================================

// initBot builds the state store, skill registry, skill client and the
// root bot itself.
func (s *Server) initBot() error {
	store, err := state.NewStore(s.cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	s.store = store
	s.sessions = state.NewManager(store, s.logger)

	descriptors := make([]skill.Descriptor, 0, len(s.cfg.Skills))
	for _, sc := range s.cfg.Skills {
		descriptors = append(descriptors, skill.Descriptor{
			ID:       sc.ID,
			AppID:    sc.AppID,
			Endpoint: sc.Endpoint,
		})
	}
	registry, err := skill.NewRegistry(descriptors)
	if err != nil {
		return fmt.Errorf("failed to build skill registry: %w", err)
	}

	client := skill.NewHTTPClient(&skill.ClientConfig{
		Timeout:    s.cfg.Bot.SkillTimeout,
		RetryCount: s.cfg.Bot.SkillRetryCount,
		RetryDelay: s.cfg.Bot.SkillRetryDelay,
	})

	s.rootBot, err = bot.NewRootBot(bot.Config{
		AppID:         s.cfg.Bot.AppID,
		TargetSkillID: s.cfg.Bot.TargetSkillID,
		CallbackURL:   s.cfg.Bot.CallbackEndpoint,
		Registry:      registry,
		Client:        client,
		State:         s.sessions,
		Logger:        s.logger,
		Metrics:       s.collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create root bot: %w", err)
	}

	s.outbox = bot.NewOutbox(s.cfg.Bot.OutboxLimit)

	s.logger.Info("Bot initialized",
		zap.Int("skills", len(descriptors)),
		zap.String("target_skill", s.cfg.Bot.TargetSkillID),
	)
	return nil
}

// initHandlers builds the HTTP handlers.
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewStoreHealthCheck("state_store", s.store.Ping))

	s.activityHandler = handlers.NewActivityHandler(s.rootBot, s.outbox, s.logger)
}

// =============================================================================
// HTTP server
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Channel turns, the outbox poll and the skill callback channel share
	// one handler that routes by path.
	mux.Handle("/api/messages", s.activityHandler)
	mux.Handle(conversationsPrefix, s.activityHandler)
	mux.Handle("/api/skills/", s.activityHandler)

	handler := s.buildMiddlewareChain(mux)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	serverCfg.ReadTimeout = s.cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = s.cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.httpManager = server.NewManager(handler, serverCfg, s.logger)
	return s.httpManager.Start()
}

// buildMiddlewareChain assembles the middleware stack around the mux.
func (s *Server) buildMiddlewareChain(mux http.Handler) http.Handler {
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	}

	if s.cfg.Server.RateLimitRPS > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		middlewares = append(middlewares,
			RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}

	if len(s.cfg.Server.APIKeys) > 0 {
		skipPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
		middlewares = append(middlewares,
			APIKeyAuth(s.cfg.Server.APIKeys, skipPaths, s.logger))
	}

	if s.cfg.Server.SkillJWTSecret != "" {
		middlewares = append(middlewares,
			SkillCallbackAuth(s.cfg.Server.SkillJWTSecret, s.logger))
	}

	return Chain(mux, middlewares...)
}

// =============================================================================
// Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	serverCfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(mux, serverCfg, s.logger.With(zap.String("server", "metrics")))
	return s.metricsManager.Start()
}

// =============================================================================
// Shutdown
// =============================================================================

// WaitForShutdown blocks until a termination signal arrives or one of the
// servers fails, then shuts everything down.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Errors():
		s.logger.Error("HTTP server exited unexpectedly", zap.Error(err))
	case err := <-s.metricsManager.Errors():
		s.logger.Error("metrics server exited unexpectedly", zap.Error(err))
	}

	s.Shutdown()
}

// Shutdown stops the servers and closes the state store.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("state store close failed", zap.Error(err))
		}
	}
}
