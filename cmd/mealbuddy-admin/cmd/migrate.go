package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirosfoundation/mealbuddy-backend/internal/backend"
	"github.com/sirosfoundation/mealbuddy-backend/internal/schema"
	"github.com/sirosfoundation/mealbuddy-backend/pkg/logging"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending schema migrations",
	Long: `Apply all pending schema migrations to the configured database. Unlike
server boot, a failure here is reported as an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
		defer cancel()

		db := cfg.Database
		db.PingOnBind = true
		store, err := backend.Open(ctx, db, logger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = store.Close() }()

		m, err := schema.New(store)
		if err != nil {
			return err
		}
		if err := m.Materialize(ctx); err != nil {
			return err
		}
		logger.Info("Schema up to date", zap.String("target", m.String()))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", m.String())
		return nil
	},
}

func init() {
	migrateUpCmd.Flags().DurationVar(&migrateTimeout, "timeout", 2*time.Minute, "Give up after this long")
	migrateCmd.AddCommand(migrateUpCmd)
	rootCmd.AddCommand(migrateCmd)
}
