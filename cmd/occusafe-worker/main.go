package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/occusafe/occusafe/internal/app"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/eventbus"
	"github.com/occusafe/occusafe/internal/shared/infrastructure/outbox"
	"github.com/occusafe/occusafe/pkg/config"
	"github.com/occusafe/occusafe/pkg/observability"
)

const statsInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logCfg := observability.ConfigForEnv(cfg.AppEnv, cfg.LogLevel)
	logCfg.ServiceName = "occusafe-worker"
	logger := observability.NewLogger(logCfg)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting occusafe worker")

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	publisher, err := container.NewEventPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	processor := container.NewOutboxProcessor(publisher)
	processor.Start(ctx)
	defer processor.Stop()

	// With a broker the cache invalidator consumes from RabbitMQ; without one
	// the in-process bus already delivers to it.
	if cfg.RabbitMQURL != "" {
		if handlers := container.EventHandlers(); len(handlers) > 0 {
			registry := eventbus.NewRegistry(logger)
			for _, h := range handlers {
				registry.Register(h)
			}
			consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
				URL:    cfg.RabbitMQURL,
				Logger: logger,
			}, registry)
			if err != nil {
				if !cfg.IsDevelopment() {
					return err
				}
				logger.Warn("event consumer unavailable", "error", err)
			} else {
				defer consumer.Close()
				go func() {
					if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("event consumer stopped", "error", err)
					}
				}()
			}
		}
	}

	if cfg.WorkerHealthAddr != "" {
		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           healthMux(processor, container.Health),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	go logStats(ctx, processor, logger)

	<-ctx.Done()
	logger.Info("shutting down worker")
	return nil
}

func logStats(ctx context.Context, processor *outbox.Processor, logger *slog.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := processor.Stats()
			logger.Info("outbox stats",
				"running", stats.Running,
				"published", stats.Published,
				"failed", stats.Failed,
				"dead", stats.Dead,
				"lag_seconds", stats.LagSeconds,
				"last_error", stats.LastError,
			)
		}
	}
}
