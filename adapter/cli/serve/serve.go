// Package serve runs the HTTP gate API.
package serve

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/occusafe/occusafe/adapter/api"
	"github.com/occusafe/occusafe/internal/app"
	"github.com/occusafe/occusafe/pkg/config"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/spf13/cobra"
)

var addrFlag string

// Cmd starts the HTTP gate API and blocks until interrupted.
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gate API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addrFlag != "" {
			cfg.HTTPAddr = addrFlag
		}

		logCfg := observability.ConfigForEnv(cfg.AppEnv, cfg.LogLevel)
		logCfg.ServiceName = "occusafe-api"
		logger := observability.NewLogger(logCfg)

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		if cfg.OutboxProcessorEnabled {
			publisher, err := container.NewEventPublisher()
			if err != nil {
				return err
			}
			defer publisher.Close()
			processor := container.NewOutboxProcessor(publisher)
			go processor.Start(ctx)
			defer processor.Stop()
		}

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = cfg.HTTPAddr
		server := api.NewServer(serverCfg, api.NewBillingHandler(container.BillingService, logger), container.Health, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	Cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (defaults to HTTP_ADDR)")
}
