package storage

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreMarksAndRemembers(t *testing.T) {
	store, err := NewStore("memory", Options{})
	if err != nil {
		t.Fatalf("NewStore memory: %v", err)
	}
	defer store.Close()

	if store.HasSeen("reddit_abc") {
		t.Fatalf("expected unseen id")
	}
	store.MarkSeen("reddit_abc")
	for i := 0; i < 3; i++ {
		if !store.HasSeen("reddit_abc") {
			t.Fatalf("expected id to stay seen on call %d", i)
		}
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d", store.Len())
	}
}

func TestMemoryStoreNeverEvicts(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5000; i++ {
		store.MarkSeen(fmt.Sprintf("id-%d", i))
	}
	if !store.HasSeen("id-0") {
		t.Fatalf("memory store evicted the oldest id")
	}
}

func TestLRUStoreBoundsCapacity(t *testing.T) {
	store, err := NewStore("lru", Options{Capacity: 2, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewStore lru: %v", err)
	}
	defer store.Close()

	store.MarkSeen("a")
	store.MarkSeen("b")
	store.MarkSeen("c")

	if store.HasSeen("a") {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if !store.HasSeen("b") || !store.HasSeen("c") {
		t.Fatalf("expected newest entries to be retained")
	}
}

func TestLRUStoreExpiresEntries(t *testing.T) {
	store, err := NewStore("lru", Options{Capacity: 10, TTL: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewStore lru: %v", err)
	}
	defer store.Close()

	store.MarkSeen("id1")
	if !store.HasSeen("id1") {
		t.Fatalf("expected id1 seen")
	}

	time.Sleep(120 * time.Millisecond)

	if store.HasSeen("id1") {
		t.Fatalf("expected entry to expire")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("bbolt", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
