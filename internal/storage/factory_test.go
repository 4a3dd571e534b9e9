package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", KindMemory, " Memory ", DefaultStoreKind} {
		store, err := NewStore(kind, "")
		if err != nil {
			t.Fatalf("new %q store: %v", kind, err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("kind %q: expected memory store, got %T", kind, store)
		}
		if err := store.Init(context.Background()); err != nil {
			t.Fatalf("init %q store: %v", kind, err)
		}
		if err := CloseIfSupported(store); err != nil {
			t.Fatalf("close %q store: %v", kind, err)
		}
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("postgres", "")
	if !errors.Is(err, ErrUnsupportedStore) {
		t.Fatalf("expected unsupported store error, got %v", err)
	}
}

func TestNewStoreSQLiteNeedsPath(t *testing.T) {
	if _, err := NewStore(KindSQLite, " "); err == nil {
		t.Fatal("expected missing database path error")
	}
}

func TestStoreKindsStartsWithDefault(t *testing.T) {
	kinds := StoreKinds()
	if len(kinds) != 2 || kinds[0] != DefaultStoreKind {
		t.Fatalf("unexpected store kinds: %v", kinds)
	}
}
