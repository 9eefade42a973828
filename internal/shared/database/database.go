package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatbook/internal/shared/config"
	applog "seatbook/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectTimeout = 5 * time.Second

// Connections are the PostgreSQL and Redis handles shared by every service
type Connections struct {
	Postgres *gorm.DB
	Redis    *redis.Client
}

// Open connects to PostgreSQL and Redis. Schema migration is left to the caller.
func Open(cfg *config.Config) (*Connections, error) {
	pg, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	conns := &Connections{Postgres: pg, Redis: rdb}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = conns.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	applog.GetDefault().Info("Databases connected", "postgres", cfg.Database.Host, "redis", cfg.Redis.Addr)
	return conns, nil
}

func openPostgres(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Silent
	if cfg.IsDevelopment() {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
		PrepareStmt:    true,

		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return db, nil
}

// Ping reports the first store that does not answer
func (c *Connections) Ping(ctx context.Context) error {
	sqlDB, err := c.Postgres.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (c *Connections) Close() error {
	var errs []error
	if sqlDB, err := c.Postgres.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	errs = append(errs, c.Redis.Close())
	return errors.Join(errs...)
}
