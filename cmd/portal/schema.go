package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/commons-portal/repositories/postgres"
	"go.uber.org/zap"
)

func newSchemaCmd() *cobra.Command {
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}

	schema.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the portal tables on a local database",
		Long: `Create the portal tables and SQL functions (get_user_roles, health_check
and the member removal helpers) on the configured database. Hosted
Supabase projects apply the same schema through migrations instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			factory, err := postgres.NewRepositoryFactory(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer func() {
				if err := factory.Close(); err != nil {
					logger.Warn("failed to close database", zap.Error(err))
				}
			}()

			if err := factory.GetDB().InitSchema(ctx); err != nil {
				return err
			}
			cmd.Println("schema initialized")
			return nil
		},
	})
	return schema
}
