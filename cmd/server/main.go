package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"docquote/internal/config"
	"docquote/internal/document"
	"docquote/internal/events"
	"docquote/internal/grounding"
	"docquote/internal/health"
	"docquote/internal/httpapi"
	"docquote/internal/llm"
	"docquote/internal/locator"
	"docquote/internal/session"
	"docquote/internal/tracing"
)

func main() {
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logLevel, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed, continuing without export", zap.Error(err))
	}

	store := document.NewStore(logger)
	hub := events.NewHub()
	retryer := locator.NewRetryer(cfg.Locator.RetryAttempts, cfg.Locator.RetryDelay, logger)
	sessions := session.NewManager(store, hub, retryer, logger)

	model := llm.NewClient(llm.Config{
		BaseURL:           cfg.Model.BaseURL,
		AgentID:           cfg.Model.AgentID,
		Temperature:       cfg.Model.Temperature,
		RequestsPerMinute: cfg.Model.RequestsPerMinute,
	}, logger)

	orchestrator := grounding.NewOrchestrator(model, grounding.Config{
		MaxEvidence:    cfg.Grounding.MaxEvidence,
		BaseMaxTokens:  cfg.Grounding.BaseMaxTokens,
		RetryMaxTokens: cfg.Grounding.RetryMaxTokens,
		RequestTimeout: cfg.Grounding.RequestTimeout,
	}, logger)

	healthMgr := health.NewManager(5*time.Second, logger)
	healthMgr.Register(health.NewModelEndpointChecker(cfg.Model.BaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload applies the log level immediately; other settings are
	// captured at construction and need a restart.
	if watcher, werr := config.NewWatcher(cfgPath, logger); werr == nil {
		watcher.OnChange(func(next *config.Config) {
			var lvl zapcore.Level
			if err := lvl.Set(next.Logging.Level); err == nil {
				logLevel.SetLevel(lvl)
			}
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Config watcher failed to start", zap.Error(err))
		}
	} else {
		logger.Debug("Config watcher unavailable", zap.Error(werr))
	}

	api := httpapi.NewServer(store, sessions, orchestrator, hub, healthMgr, logger)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: the event stream is a long-lived WebSocket.
		WriteTimeout: 0,
		IdleTimeout:  300 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, zap.AtomicLevel{}, err
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if err := level.Set(env); err != nil {
			return nil, zap.AtomicLevel{}, err
		}
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	return logger, zcfg.Level, err
}
