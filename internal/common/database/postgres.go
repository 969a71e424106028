// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intake-service/internal/common/config"

	_ "github.com/lib/pq"
)

const pgPingTimeout = 3 * time.Second

// PostgresClient owns the pool behind the authoritative intake store.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. Nothing is dialed until Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	configurePool(db, cfg)
	return &PostgresClient{DB: db}, nil
}

func configurePool(db *sql.DB, cfg config.PostgresConfig) {
	maxOpen := cfg.MaxConnections
	if maxOpen <= 0 {
		maxOpen = 10
	}
	idle := cfg.MaxIdle
	if idle <= 0 || idle > maxOpen {
		idle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pgPingTimeout)
	defer cancel()
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
