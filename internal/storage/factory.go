package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Store kinds accepted by NewStore.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"

	DefaultStoreKind = KindMemory
)

var ErrUnsupportedStore = errors.New("unsupported store backend")

// StoreKinds lists the kinds NewStore understands, default first.
func StoreKinds() []string {
	return []string{KindMemory, KindSQLite}
}

// NewStore opens the run store of the given kind. The empty kind selects
// DefaultStoreKind and sqlitePath is only read by the sqlite kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if strings.TrimSpace(sqlitePath) == "" {
			return nil, fmt.Errorf("%s store: database path is required", KindSQLite)
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedStore, kind, strings.Join(StoreKinds(), ", "))
	}
}

// CloseIfSupported releases stores that hold resources; the memory store
// holds none.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
