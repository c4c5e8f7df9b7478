// Package store is the SQLite-backed persistence layer shared by all
// pipeline stages. Every stage reads through bounded queries that select
// only unprocessed state and commits its mutation batch in a single
// transaction, which is what makes pipeline re-entry idempotent.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	cache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite" // SQLite driver
)

// Clusters whose score fell below this floor are treated as unscored and
// picked up again by the scorer.
const unscoredFloor = 0.1

// Store wraps the database handle with the query builder and the topic
// reference-data cache.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	topics  *cache.Cache
}

// Open opens (and if necessary creates) the store at path. Pass
// ":memory:" for an in-memory database, used by tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// A second pool connection would see its own empty database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	s := &Store{
		db:      db,
		builder: sq.StatementBuilder,
		topics:  cache.New(5*time.Minute, 10*time.Minute),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			source_type TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS raw_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			content TEXT,
			published_at DATETIME,
			ingested_at DATETIME NOT NULL,
			frontier_lab TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_items_url ON raw_items(url)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_items_frontier_lab ON raw_items(frontier_lab)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			slug TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS clusters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			summary TEXT,
			why_this_matters TEXT,
			what_to_watch_next TEXT,
			score REAL NOT NULL,
			ranking_rationale TEXT,
			clinical_maturity_level TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_score ON clusters(score)`,
		`CREATE TABLE IF NOT EXISTS cluster_items (
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			raw_item_id INTEGER NOT NULL REFERENCES raw_items(id) ON DELETE CASCADE,
			PRIMARY KEY (cluster_id, raw_item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS cluster_topics (
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			PRIMARY KEY (cluster_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS score_breakdowns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id INTEGER NOT NULL UNIQUE REFERENCES clusters(id) ON DELETE CASCADE,
			relevance_score REAL NOT NULL,
			impact_score REAL NOT NULL,
			credibility_score REAL NOT NULL,
			novelty_score REAL NOT NULL,
			corroboration_score REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			raw_item_id INTEGER NOT NULL REFERENCES raw_items(id) ON DELETE CASCADE,
			citation_text TEXT,
			url TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_briefings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			briefing_date TEXT NOT NULL UNIQUE,
			content TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS briefing_clusters (
			briefing_id INTEGER NOT NULL REFERENCES daily_briefings(id) ON DELETE CASCADE,
			cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
			PRIMARY KEY (briefing_id, cluster_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
