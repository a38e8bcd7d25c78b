package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id                 UUID PRIMARY KEY,
	kind               TEXT NOT NULL,
	conversation_id    TEXT,
	input              TEXT NOT NULL,
	output             TEXT,
	provider           TEXT NOT NULL,
	status             TEXT NOT NULL,
	error_code         INTEGER,
	error_message      TEXT,
	confidence         DOUBLE PRECISION,
	audio_format       TEXT,
	audio_size_bytes   INTEGER,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS interactions_kind_created_idx ON interactions (kind, created_at DESC);
CREATE INDEX IF NOT EXISTS interactions_conversation_idx ON interactions (conversation_id);
`

// Open connects to postgres and checks the connection
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}

	logger.Info("connected to postgres")
	return conn, nil
}

// Migrate creates the interaction history table when it does not exist
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
