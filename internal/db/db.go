package db

import (
	"fmt"

	"brewlog/internal/auth"
	"brewlog/internal/jobs"
	"brewlog/internal/tasting"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Debug("postgres connected")
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&tasting.Record{},
		&tasting.UserAchievement{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		// one record per finished draft
		`create unique index if not exists uq_records_user_draft on records(user_id, draft_id);`,
		`create index if not exists idx_records_user_tasted on records(user_id, tasted_at desc);`,
		`create index if not exists idx_records_flavors on records using gin (flavors);`,
		`create index if not exists idx_user_achievements_unseen on user_achievements(user_id) where notified_at is null;`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
