package main

import (
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/database"
	"github.com/spf13/cobra"
)

// migrateCmd creates or updates the pipeline tables
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewPostgresDB(&cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return err
		}
		return printResult(cmd, "migrations applied", map[string]bool{"migrated": true})
	},
}
