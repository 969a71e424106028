package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS applicants (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id          UUID PRIMARY KEY,
		seq         BIGSERIAL UNIQUE,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sort_order  INT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS questions_active_order_idx ON questions (is_active, sort_order, seq)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id           UUID PRIMARY KEY,
		question_id  UUID NOT NULL,
		applicant_id TEXT NOT NULL,
		answer       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT answers_question_applicant_key UNIQUE (question_id, applicant_id)
	)`,
	`CREATE INDEX IF NOT EXISTS answers_applicant_idx ON answers (applicant_id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id           UUID PRIMARY KEY,
		applicant_id TEXT NOT NULL,
		answers      JSONB NOT NULL,
		status       TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		reviewed_at  TIMESTAMPTZ NULL,
		reviewed_by  TEXT NULL,
		CONSTRAINT tickets_applicant_key UNIQUE (applicant_id)
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_submitted_idx ON tickets (submitted_at DESC)`,
}

// Migrate applies the intake schema inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
