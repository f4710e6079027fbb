package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Package storage provides the in-process seen-set used to deduplicate
// content and opportunities.

// Store tracks content and opportunity ids already processed.
type Store interface {
	Close() error
	HasSeen(id string) bool
	MarkSeen(id string)
	Len() int
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	Capacity int
	TTL      time.Duration
}

const (
	TypeMemory = "memory"
	TypeLRU    = "lru"

	defaultCapacity = 100000
	defaultTTL      = 7 * 24 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeLRU:
		return newLRUStore(opts), nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	return opts
}

// memoryStore is an unbounded hash set. It grows for the process lifetime.
type memoryStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemoryStore returns an empty unbounded store.
func NewMemoryStore() Store {
	return &memoryStore{seen: make(map[string]struct{})}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) HasSeen(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[id]
	return ok
}

func (m *memoryStore) MarkSeen(id string) {
	m.mu.Lock()
	m.seen[id] = struct{}{}
	m.mu.Unlock()
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}
