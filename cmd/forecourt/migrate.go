package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avendano/forecourt/internal/config"
	"github.com/avendano/forecourt/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the corpus",
		Long:  "Creates or updates the schema, collapses the legacy allow-list flags, and seeds the default reference documents into an empty corpus.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "forecourt.yaml", "path to config file")
	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	gormDB, err := db.Connect(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.NormalizeWhitelist(gormDB); err != nil {
		return err
	}
	if err := db.SeedCorpus(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
	return nil
}
