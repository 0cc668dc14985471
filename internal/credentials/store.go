// Package credentials persists the session token and cached user profile
// across restarts.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("credential not found")

// Well-known keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store is an opaque persistent key-value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Driver    string
	Path      string
	DSN       string
	Namespace string
}

// Open returns the store selected by cfg.Driver. The returned close
// function releases any underlying connection.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", DriverFile:
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("credentials: file driver requires a path")
		}
		return NewFileStore(cfg.Path), noop, nil
	case DriverPostgres:
		store, err := OpenPostgres(ctx, cfg.DSN, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case DriverMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("credentials: unknown driver %q", cfg.Driver)
	}
}

// MemoryStore keeps credentials for the lifetime of the process only.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
