package main

import (
	"brewlog/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			gdb, err := db.Connect(cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			if err := db.AutoMigrateAndIndexes(gdb); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
