package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voice-calculator/internal/config"
	"voice-calculator/internal/observability"
	"voice-calculator/internal/server"
	"voice-calculator/internal/session"
	"voice-calculator/internal/speech"
	"voice-calculator/internal/voice"
)

func main() {
	configPath := flag.String("config", os.Getenv("CALC_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := loadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logger
	if err := observability.InitLogger(cfg.Log.Level); err != nil {
		return err
	}
	defer observability.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing, metrics and log export
	telemetryShutdown, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer telemetryShutdown(context.Background())

	logger := observability.Logger

	// Sessions
	store, memory, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	announcer := speech.NewAnnouncer(speech.LogSynthesizer{Logger: logger.Named("speech")}, cfg.Speech, logger)
	defer announcer.Close()

	manager := session.NewManager(store,
		session.WithHub(session.NewHub(cfg.Session.HubBuffer)),
		session.WithAnnouncer(announcer),
		session.WithLogger(logger.Named("session")),
	)
	dispatcher := voice.NewDispatcher(cfg.Voice.DispatcherOptions()...)

	// Router
	router := server.NewRouter(session.NewHandler(manager, dispatcher,
		session.WithOriginPatterns(cfg.Server.OriginPatterns...),
	))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started", zap.String("addr", cfg.Server.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if memory != nil && cfg.Session.TTL > 0 {
		g.Go(func() error {
			return pruneSessions(gctx, memory, cfg.Session.TTL)
		})
	}

	return g.Wait()
}
