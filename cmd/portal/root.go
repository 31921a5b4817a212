package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/commons-portal/config"
	"github.com/upb/commons-portal/internal/observability"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portal",
		Short: "Commons portal backend",
		Long: `portal serves the commons portal API: projects, communities and user
profiles backed by Postgres, with sessions and roles issued by Supabase Auth.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newSchemaCmd())
	return root
}

// bootstrap loads the configuration and builds the logger it describes
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
