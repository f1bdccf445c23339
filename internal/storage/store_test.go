package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// storeFactories lets every test run against each implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"bolt": func() Store {
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "catalog.db"))
			if err != nil {
				t.Fatalf("Failed to open bolt store: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// TestStore tests the basic record operations of every store
func TestStore(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("new store is empty", func(t *testing.T) {
				store := newStore()

				keys, err := store.List()
				if err != nil {
					t.Fatalf("Failed to list: %v", err)
				}
				if len(keys) != 0 {
					t.Errorf("Expected empty store, got %d keys", len(keys))
				}

				_, err = store.Get("nonexistent")
				if err != ErrKeyNotFound {
					t.Errorf("Expected ErrKeyNotFound, got %v", err)
				}
			})

			t.Run("put and get", func(t *testing.T) {
				store := newStore()

				if err := store.Put("file-1", []byte(`{"file_name":"a.txt"}`)); err != nil {
					t.Fatalf("Failed to put value: %v", err)
				}

				value, err := store.Get("file-1")
				if err != nil {
					t.Fatalf("Failed to get value: %v", err)
				}
				if !bytes.Equal(value, []byte(`{"file_name":"a.txt"}`)) {
					t.Errorf("Unexpected record %s", value)
				}
			})

			t.Run("overwrite existing key", func(t *testing.T) {
				store := newStore()

				if err := store.Put("file-1", []byte("v1")); err != nil {
					t.Fatalf("Failed to put initial value: %v", err)
				}
				if err := store.Put("file-1", []byte("v2")); err != nil {
					t.Fatalf("Failed to overwrite value: %v", err)
				}

				value, err := store.Get("file-1")
				if err != nil {
					t.Fatalf("Failed to get value: %v", err)
				}
				if !bytes.Equal(value, []byte("v2")) {
					t.Errorf("Expected 'v2', got %s", value)
				}
			})

			t.Run("list keys", func(t *testing.T) {
				store := newStore()
				for _, k := range []string{"c", "a", "b"} {
					if err := store.Put(k, []byte(k)); err != nil {
						t.Fatalf("Failed to put %s: %v", k, err)
					}
				}

				keys, err := store.List()
				if err != nil {
					t.Fatalf("Failed to list: %v", err)
				}
				sort.Strings(keys)
				if fmt.Sprint(keys) != "[a b c]" {
					t.Errorf("Expected [a b c], got %v", keys)
				}
			})
		})
	}
}

// TestMemoryStoreIsolation verifies callers cannot mutate stored records
func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()

	original := []byte("record")
	store.Put("k", original)
	original[0] = 'X'

	value, _ := store.Get("k")
	if string(value) != "record" {
		t.Errorf("Stored value changed through caller slice: %s", value)
	}

	value[0] = 'Y'
	again, _ := store.Get("k")
	if string(again) != "record" {
		t.Errorf("Stored value changed through returned slice: %s", again)
	}
}

// TestBoltStoreEmptyKey rejects a record without a key
func TestBoltStoreEmptyKey(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	defer store.Close()

	if err := store.Put("", []byte("x")); err == nil {
		t.Error("Expected error for empty key")
	}
}

// TestBoltStorePersists verifies a reopened store sees earlier writes
func TestBoltStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	first, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	if err := first.Put("file-1", []byte("persisted")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	second, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen bolt store: %v", err)
	}
	defer second.Close()

	value, err := second.Get("file-1")
	if err != nil {
		t.Fatalf("Failed to get after reopen: %v", err)
	}
	if string(value) != "persisted" {
		t.Errorf("Expected 'persisted', got %s", value)
	}
}

// TestBoltStoreGetReturnsCopy verifies returned records outlive the read transaction
func TestBoltStoreGetReturnsCopy(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open bolt store: %v", err)
	}
	defer store.Close()

	store.Put("k", []byte("record"))
	value, _ := store.Get("k")
	value[0] = 'X'

	again, _ := store.Get("k")
	if string(again) != "record" {
		t.Errorf("Stored value changed through returned slice: %s", again)
	}
}

// TestStoreConcurrency tests concurrent writers on distinct keys
func TestStoreConcurrency(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			var wg sync.WaitGroup

			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					key := fmt.Sprintf("key%d", id)
					if err := store.Put(key, []byte(key)); err != nil {
						t.Errorf("Failed to put %s: %v", key, err)
					}
				}(i)
			}
			wg.Wait()

			keys, err := store.List()
			if err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(keys) != 20 {
				t.Errorf("Expected 20 keys, got %d", len(keys))
			}
		})
	}
}
