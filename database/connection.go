package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/justbri/reelscrape/config"
)

var DB *sql.DB

// Connect opens the pgx pool described by cfg and pings it. The pool is kept
// in DB for the migration and seed steps run at startup.
func Connect(cfg *config.Config) error {
	db, err := Open(cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	slog.Info("Connected to database",
		"max_open", cfg.Pool.MaxOpen,
		"max_idle", cfg.Pool.MaxIdle,
		"max_lifetime", cfg.Pool.MaxLifetime.Duration)
	return nil
}

// Open returns a pool without touching the network.
func Open(dsn string, pool config.PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	applyPool(db, pool)
	return db, nil
}

func applyPool(db *sql.DB, pool config.PoolConfig) {
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime.Duration)
	}
}

func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}
