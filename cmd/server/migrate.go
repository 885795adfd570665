package main

import (
	"fmt"

	"github.com/pickbox/backend/internal/database"
	"github.com/pickbox/backend/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect migrates on open.
		db, err := database.Connect(cfg.DB)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}

		logger.Info("schema_migrated", map[string]interface{}{
			"driver": cfg.DB.Driver,
		})
		return nil
	},
}
