package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voice-calculator/internal/config"
	"voice-calculator/internal/observability"
	"voice-calculator/internal/session"
)

// initTelemetry installs the tracer and meter providers, the session
// instruments and, with OTLP enabled, the log export. The returned func shuts
// all of them down.
func initTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	traceShutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLP)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	shutdowns = append(shutdowns, traceShutdown)

	metricShutdown, err := observability.InitMetrics(ctx, cfg.ServiceName, cfg.OTLP)
	if err != nil {
		shutdown(ctx)
		return nil, fmt.Errorf("metrics: %w", err)
	}
	shutdowns = append(shutdowns, metricShutdown)

	if err := session.InitMetrics(); err != nil {
		shutdown(ctx)
		return nil, err
	}

	if cfg.OTLP {
		logShutdown, err := observability.InitLogging(ctx, cfg.ServiceName)
		if err != nil {
			shutdown(ctx)
			return nil, fmt.Errorf("logging: %w", err)
		}
		shutdowns = append(shutdowns, logShutdown)
	}

	return shutdown, nil
}

// newStore opens the configured session store. closeStore releases it; memory
// is set only for the in-process store.
func newStore(ctx context.Context, cfg *config.Config) (store session.Store, memory *session.MemoryStore, closeStore func() error, err error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		rs, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Session.TTL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		observability.Logger.Info("using redis session store", zap.String("addr", cfg.Redis.Addr))
		return rs, nil, rs.Close, nil
	default:
		ms := session.NewMemoryStore(cfg.Session.TTL)
		observability.Logger.Info("using in-memory session store", zap.Duration("ttl", cfg.Session.TTL))
		return ms, ms, func() error { return nil }, nil
	}
}

// pruneSessions drops expired in-memory sessions until ctx ends.
func pruneSessions(ctx context.Context, store *session.MemoryStore, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := store.Prune(); n > 0 {
				observability.Logger.Debug("pruned expired sessions", zap.Int("count", n))
			}
		}
	}
}
