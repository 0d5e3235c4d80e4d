// Package pgvector drives a PostgreSQL table with the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"vecbench/internal/backend"
	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

// Store is the pgvector adapter. Rows keep the record ID as primary key and
// are matched by word.
type Store struct {
	db    *sql.DB
	table string
	log   *slog.Logger
}

// New opens a lib/pq connection pool; no connection is made until first use
func New(cfg config.PostgresConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: postgres %s:%d: %w", backend.ErrConnection, cfg.Host, cfg.Port, err)
	}
	return &Store{
		db:    db,
		table: cfg.Table,
		log:   log.With("backend", "pgvector", "table", cfg.Table),
	}, nil
}

func (s *Store) Name() string { return "pgvector" }

func (s *Store) MatchBy() backend.Match { return backend.MatchLabel }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: postgres ping: %w", backend.ErrConnection, err)
	}
	return nil
}

// Ingest recreates the table and inserts every record in one transaction
func (s *Store) Ingest(ctx context.Context, c *corpus.Corpus) error {
	for _, stmt := range schemaStatements(s.table, c.Dim) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %s: %w", backend.ErrSchema, stmt, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", backend.ErrConnection, err)
	}
	defer tx.Rollback()

	insert, err := tx.PrepareContext(ctx, insertStatement(s.table))
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", backend.ErrSchema, err)
	}
	defer insert.Close()

	for _, r := range c.Records {
		word := sql.NullString{String: r.Label, Valid: r.Label != ""}
		if _, err := insert.ExecContext(ctx, r.ID, pgvector.NewVector(r.Vector), word); err != nil {
			return fmt.Errorf("%w: insert record %d: %w", backend.ErrDataMismatch, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", backend.ErrConnection, err)
	}
	s.log.Debug("inserted rows", "count", c.Len())
	return nil
}

// Search orders the table by cosine distance to the vector
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]backend.Hit, error) {
	rows, err := s.db.QueryContext(ctx, searchStatement(s.table), pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", backend.ErrConnection, s.table, err)
	}
	defer rows.Close()

	var hits []backend.Hit
	for rows.Next() {
		var (
			id       int
			distance float64
			word     sql.NullString
		)
		if err := rows.Scan(&id, &distance, &word); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", backend.ErrDataMismatch, s.table, err)
		}
		hits = append(hits, backend.Hit{ID: id, Label: word.String, Score: float32(1 - distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", backend.ErrConnection, s.table, err)
	}
	return hits, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func schemaStatements(table string, dim int) []string {
	t := pq.QuoteIdentifier(table)
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"DROP TABLE IF EXISTS " + t,
		fmt.Sprintf("CREATE TABLE %s (id bigint PRIMARY KEY, embedding vector(%d), word text)", t, dim),
	}
}

func insertStatement(table string) string {
	return fmt.Sprintf("INSERT INTO %s (id, embedding, word) VALUES ($1, $2, $3)", pq.QuoteIdentifier(table))
}

func searchStatement(table string) string {
	return fmt.Sprintf("SELECT id, embedding <=> $1::vector AS distance, word FROM %s ORDER BY distance LIMIT $2",
		pq.QuoteIdentifier(table))
}
