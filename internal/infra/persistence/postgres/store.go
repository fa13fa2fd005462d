// Package postgres persists ledger state to Postgres with the same row shape
// as the sqlite driver. Reads come from the embedded in-memory store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"aclchain/internal/infra/persistence"
	"aclchain/internal/infra/persistence/memory"
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/aclchain?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open implementation for tests and returns a
// restore function.
func OverrideSQLOpen(open func(driver, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = open
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store is a durable state store backed by Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
}

var _ persistence.Store = (*Store)(nil)

// NewStore connects with the given DSN (falling back to a local default),
// ensures the state table exists, and hydrates the in-memory view.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		address TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT address, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string][]byte)
	for rows.Next() {
		var (
			addr    string
			payload []byte
		)
		if err := rows.Scan(&addr, &payload); err != nil {
			return fmt.Errorf("scan state row: %w", err)
		}
		entries[addr] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state rows: %w", err)
	}
	return s.Store.ImportState(ctx, entries)
}

// SetState applies the entries in memory and upserts the same rows durably.
func (s *Store) SetState(ctx context.Context, entries map[string][]byte) error {
	if err := s.Store.SetState(ctx, entries); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	for addr, payload := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state (address, payload) VALUES ($1, $2)
			 ON CONFLICT (address) DO UPDATE SET payload = excluded.payload`,
			addr, payload); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert state %s: %w", addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ImportState replaces both the in-memory view and the table contents.
func (s *Store) ImportState(ctx context.Context, entries map[string][]byte) error {
	if err := s.Store.ImportState(ctx, entries); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM state`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear state: %w", err)
	}
	for addr, payload := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state (address, payload) VALUES ($1, $2)`, addr, payload); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert state %s: %w", addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
