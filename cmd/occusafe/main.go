package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/adapter/cli"
	cliBilling "github.com/occusafe/occusafe/adapter/cli/billing"
	"github.com/occusafe/occusafe/adapter/cli/mcp"
	"github.com/occusafe/occusafe/adapter/cli/serve"
	"github.com/occusafe/occusafe/internal/app"
	"github.com/occusafe/occusafe/pkg/config"
	"github.com/occusafe/occusafe/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development", LogLevel: "warn"}
	}

	// CLI output goes to stdout; keep logs quiet on stderr unless asked.
	logCfg := observability.ConfigForEnv(cfg.AppEnv, cfg.LogLevel)
	if cfg.LogLevel == "" || cfg.LogLevel == "info" {
		logCfg.Level = "warn"
	}
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		orgID, err := uuid.Parse(cfg.OrganizationID)
		if err != nil {
			orgID = uuid.Nil
		}
		cliApp = cli.NewApp(container.BillingService, orgID)
	}
	cli.SetApp(cliApp)

	cli.AddCommand(cliBilling.Cmd)
	cli.AddCommand(serve.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.Execute(ctx)
}
