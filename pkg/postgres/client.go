// Package postgres opens the PostgreSQL pool shared by the document and
// report stores, runs transactions, and applies the service schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ABNmmd/PFE-FSA/pkg/config"
	_ "github.com/lib/pq"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Migrate creates the documents and plagiarism_reports tables if they do not
// exist. Statements are idempotent so every binary may call it on start.
func (c *Client) Migrate(ctx context.Context) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		file_type  TEXT NOT NULL,
		size       BIGINT NOT NULL,
		content    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_user_id_idx ON documents (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS plagiarism_reports (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		document1        JSONB,
		document2        JSONB,
		similarity_score DOUBLE PRECISION,
		status           TEXT NOT NULL,
		results          JSONB,
		matched_content  JSONB NOT NULL DEFAULT '[]',
		detection_method TEXT NOT NULL,
		report_type      TEXT NOT NULL,
		check_options    JSONB,
		sources_checked  JSONB NOT NULL DEFAULT '[]',
		source_results   JSONB NOT NULL DEFAULT '{}',
		progress         DOUBLE PRECISION NOT NULL DEFAULT 0,
		error            TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS plagiarism_reports_user_idx ON plagiarism_reports (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS plagiarism_reports_doc1_idx ON plagiarism_reports ((document1->>'id'))`,
	`CREATE INDEX IF NOT EXISTS plagiarism_reports_doc2_idx ON plagiarism_reports ((document2->>'id'))`,
}
