package storage

import (
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// lruStore bounds the seen-set by both size and age. An id that falls out
// of the window may be processed again; the only consequence is a repeated
// notification.
type lruStore struct {
	cache *expirable.LRU[string, struct{}]
}

func newLRUStore(opts Options) Store {
	return &lruStore{
		cache: expirable.NewLRU[string, struct{}](opts.Capacity, nil, opts.TTL),
	}
}

// Close empties the cache. The expirable LRU's expiry goroutine is not
// stopped and lives until the process exits, so open one store per process.
func (l *lruStore) Close() error {
	l.cache.Purge()
	return nil
}

func (l *lruStore) HasSeen(id string) bool {
	return l.cache.Contains(id)
}

func (l *lruStore) MarkSeen(id string) {
	l.cache.Add(id, struct{}{})
}

func (l *lruStore) Len() int {
	return l.cache.Len()
}
