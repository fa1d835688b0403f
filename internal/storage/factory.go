package storage

import (
	"fmt"
	"strings"
)

// Store backend kinds. Matching is case and whitespace insensitive,
// like the wave source and profile registries.
const (
	DefaultStoreKind = "memory"
	SQLiteStoreKind  = "sqlite"
)

// NormalizeStoreKind canonicalizes a backend name. Empty input maps to
// the default backend; unknown names pass through unchanged so the
// caller can report them verbatim.
func NormalizeStoreKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return DefaultStoreKind
	}
	return kind
}

// NewStore builds the configured backend. The path is consulted only by
// backends with a file footprint.
func NewStore(kind, dbPath string) (Store, error) {
	switch NormalizeStoreKind(kind) {
	case DefaultStoreKind:
		return NewMemoryStore(), nil
	case SQLiteStoreKind:
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported releases backends that hold external resources; the
// in-memory store has nothing to close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
