// Package schema owns the relational DDL. Runtime queries go through pgx in
// internal/repository; gorm is only used to create and evolve the tables.
package schema

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	DSN    string
	LogSQL bool
}

func Open(cfg Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN), gormConfig(cfg.LogSQL))
}

func gormConfig(logSQL bool) *gorm.Config {
	lvl := gormlogger.Silent
	if logSQL {
		lvl = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.New(log.New(log.Writer(), "", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

// Migrate creates or updates every table, index and constraint.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
