package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// PostgresOptions tunes the connection pool
type PostgresOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgresStore creates a new PostgreSQL store and bootstraps the schema
func NewPostgresStore(dsn string, opts PostgresOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ensureSchema creates the telemetry and activity log tables
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS telemetry_log (
			id BIGSERIAL PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			pubkey TEXT NOT NULL,
			name TEXT,
			battery_mv INTEGER,
			battery_voltage DOUBLE PRECISION,
			rssi INTEGER,
			snr DOUBLE PRECISION,
			noise_floor INTEGER,
			uptime_seconds BIGINT,
			packets_recv BIGINT,
			packets_sent BIGINT,
			hop_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_pubkey_ts
			ON telemetry_log (pubkey, timestamp)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id UUID PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			level TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_ts
			ON activity_log (timestamp)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
