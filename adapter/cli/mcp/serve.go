package mcp

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/app"
	mcpinternal "github.com/occusafe/occusafe/internal/mcp"
	"github.com/occusafe/occusafe/pkg/config"
	"github.com/occusafe/occusafe/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logCfg := observability.ConfigForEnv(cfg.AppEnv, cfg.LogLevel)
		logCfg.ServiceName = "occusafe-mcp"
		logger := observability.NewLogger(logCfg)

		container, err := app.NewContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer container.Close()

		orgID, err := uuid.Parse(cfg.OrganizationID)
		if err != nil {
			return err
		}

		deps, err := mcpinternal.NewToolDependencies(container, orgID)
		if err != nil {
			return err
		}
		err = mcpinternal.Serve(ctx, cfg, deps, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
