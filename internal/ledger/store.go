package ledger

import (
	"fmt"

	"aclchain/internal/infra/persistence"
	"aclchain/internal/infra/persistence/memory"
	"aclchain/internal/infra/persistence/postgres"
	"aclchain/internal/infra/persistence/sqlite"
)

// OpenStore constructs the state store selected by opts.Driver. An empty
// driver defaults to sqlite so a bare daemon is durable out of the box.
func OpenStore(opts persistence.Options) (persistence.Store, error) {
	switch opts.Driver {
	case persistence.DriverMemory:
		return memory.NewStore(), nil
	case persistence.DriverSQLite, "":
		return sqlite.NewStore(opts.SQLitePath)
	case persistence.DriverPostgres:
		return postgres.NewStore(opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
