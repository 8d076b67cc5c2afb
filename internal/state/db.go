package state

import (
	"fmt"
	"os"
	"path/filepath"

	dbm "github.com/cosmos/cosmos-db"
)

// OpenDB opens the ledger database under <home>/data.
func OpenDB(home, name, backend string) (dbm.DB, error) {
	bt := dbm.BackendType(backend)
	if bt == dbm.MemDBBackend {
		return dbm.NewMemDB(), nil
	}
	dir := filepath.Join(home, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := dbm.NewDB(name, bt, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db %q: %w", backend, name, err)
	}
	return db, nil
}
