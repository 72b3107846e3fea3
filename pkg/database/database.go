// Package database is the relational store for users, scans, generated
// questions, quiz attempts and the leaderboard. It speaks plain SQL
// through sqlx against Postgres.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// DB wraps the sqlx handle with the query methods the service needs.
type DB struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open connects to Postgres using dsn and verifies the connection.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return &DB{db: db, log: log.With().Str("component", "database").Logger()}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error { return d.db.Close() }

// Ping checks connectivity, used by the health endpoint.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               UUID PRIMARY KEY,
	external_user_id TEXT NOT NULL UNIQUE,
	email            TEXT,
	username         TEXT,
	full_name        TEXT,
	avatar_url       TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS website_scans (
	id          UUID PRIMARY KEY,
	website_url TEXT NOT NULL,
	scan_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_by  UUID REFERENCES users(id),
	is_public   BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS questions (
	id              UUID PRIMARY KEY,
	website_scan_id UUID NOT NULL REFERENCES website_scans(id),
	created_by      UUID REFERENCES users(id),
	vuln_type       TEXT NOT NULL,
	title           TEXT NOT NULL,
	short_explain   TEXT NOT NULL DEFAULT '',
	exercise_type   TEXT NOT NULL,
	exercise_prompt TEXT NOT NULL,
	choices         JSONB NOT NULL DEFAULT '[]',
	answer_key      JSONB NOT NULL DEFAULT '[]',
	hints           JSONB NOT NULL DEFAULT '[]',
	difficulty      TEXT NOT NULL,
	xp              INTEGER NOT NULL DEFAULT 0,
	badge           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
	id              UUID PRIMARY KEY,
	user_id         UUID NOT NULL REFERENCES users(id),
	website_scan_id UUID REFERENCES website_scans(id),
	started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ,
	total_xp        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS question_responses (
	id              UUID PRIMARY KEY,
	quiz_attempt_id UUID NOT NULL REFERENCES quiz_attempts(id),
	question_id     UUID REFERENCES questions(id),
	user_id         UUID NOT NULL REFERENCES users(id),
	user_answer     TEXT NOT NULL DEFAULT '',
	is_correct      BOOLEAN NOT NULL DEFAULT false,
	xp_earned       INTEGER NOT NULL DEFAULT 0,
	badge           TEXT NOT NULL DEFAULT '',
	time_taken_secs INTEGER,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_stats (
	user_id                  UUID PRIMARY KEY REFERENCES users(id),
	total_xp                 INTEGER NOT NULL DEFAULT 0,
	total_questions_answered INTEGER NOT NULL DEFAULT 0,
	total_correct_answers    INTEGER NOT NULL DEFAULT 0,
	badges_earned            JSONB NOT NULL DEFAULT '[]',
	accuracy_percentage      NUMERIC(5,2) NOT NULL DEFAULT 0,
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scans_created_by ON website_scans(created_by);
CREATE INDEX IF NOT EXISTS idx_questions_scan ON questions(website_scan_id);
CREATE INDEX IF NOT EXISTS idx_responses_user ON question_responses(user_id);
CREATE INDEX IF NOT EXISTS idx_stats_xp ON user_stats(total_xp DESC);
`

// Migrate creates the tables if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	d.log.Info().Msg("schema up to date")
	return nil
}
