// Package sqlite persists ledger state to a SQLite file, one row per state
// address. Reads are served from an embedded in-memory store hydrated at
// open; every write also upserts the touched rows inside a sql transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"aclchain/internal/infra/persistence"
	"aclchain/internal/infra/persistence/memory"
)

// Store is a durable state store backed by a SQLite file.
type Store struct {
	*memory.Store
	db *sql.DB
}

var _ persistence.Store = (*Store)(nil)

// NewStore opens or creates the database at path and hydrates the in-memory
// view from it.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "aclchain.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		address TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(context.Background()); err != nil {
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
	return s.upsert(ctx, entries)
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
			`INSERT INTO state (address, payload) VALUES (?, ?)`, addr, payload); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert state %s: %w", addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	for addr, payload := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state (address, payload) VALUES (?, ?)
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

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
