package journal

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// KVStore is the minimal key-value mirror a Recorder writes through
// alongside its JSON files, letting a restarted node rehydrate its last
// known state without re-parsing every file on disk.
type KVStore interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Close() error
}

// BadgerStore implements KVStore on top of an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("journal: database at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("journal: open database at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Put stores a key-value pair.
func (b *BadgerStore) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("journal: badger put: %w", err)
	}
	return nil
}

// Get retrieves a value by key.
func (b *BadgerStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("journal: key not found")
	}
	if err != nil {
		return nil, fmt.Errorf("journal: badger get: %w", err)
	}
	return val, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// MemoryStore is an in-memory KVStore, used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a key-value pair.
func (m *MemoryStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("journal: key not found")
	}
	return v, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
