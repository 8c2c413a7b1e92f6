package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aaron408/vercel-authservice/internal/config"
	"github.com/Aaron408/vercel-authservice/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}
	logger.Info("Database migrations completed")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	steps, _ := cmd.Flags().GetInt("steps")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := database.MigrateDown(cfg.Database, steps); err != nil {
		return err
	}
	logger.Info("Database migrations rolled back", slog.Int("steps", steps))
	return nil
}
