// Package persistence defines the global state store contract shared by the
// storage drivers. A store keeps the committed ledger state as an address to
// bytes map; the memory driver is authoritative for semantics and the sql
// drivers wrap it with durable snapshots.
package persistence

import (
	"context"

	"aclchain/internal/state"
)

// Store is the committed state a ledger applies transactions against.
type Store interface {
	state.Reader
	state.Writer

	// ExportState returns a copy of the full committed state.
	ExportState(ctx context.Context) (map[string][]byte, error)
	// ImportState replaces the committed state wholesale.
	ImportState(ctx context.Context, entries map[string][]byte) error
	Close() error
}

// Driver names understood by ledger.OpenStore.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options carries driver selection and driver-specific settings.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}
