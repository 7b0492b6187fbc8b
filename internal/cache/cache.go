// Package cache holds the live trip records of every open trip thread.
// The cache has no persistence of its own: the pinned anchor message in each
// thread is the durable copy, and the cache is rebuilt from those messages
// at startup.
package cache

import (
	"fmt"
	"sync"

	"github.com/pkordes/tripbot/internal/domain"
)

// Entry binds a trip thread to its anchor message and current record.
type Entry struct {
	AnchorMessageID string
	Record          domain.Record
}

// TripCache maps thread IDs to their live Entry. It is safe for concurrent
// use; each operation runs under a single lock, so a Mutate is atomic with
// respect to every other operation on the cache.
type TripCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// New returns an empty TripCache.
func New() *TripCache {
	return &TripCache{entries: make(map[string]Entry)}
}

// Create binds threadID to anchorMessageID with the given initial record.
// Returns domain.ErrAlreadyExists if the thread already has an entry.
func (c *TripCache) Create(threadID, anchorMessageID string, record domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[threadID]; ok {
		return fmt.Errorf("cache.TripCache.Create: thread %s: %w", threadID, domain.ErrAlreadyExists)
	}
	c.entries[threadID] = Entry{AnchorMessageID: anchorMessageID, Record: record}
	return nil
}

// Get returns the entry for threadID.
// Returns domain.ErrNotATripThread if the thread has no entry.
func (c *TripCache) Get(threadID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[threadID]
	if !ok {
		return Entry{}, fmt.Errorf("cache.TripCache.Get: thread %s: %w", threadID, domain.ErrNotATripThread)
	}
	return e, nil
}

// Mutate replaces the record of threadID with fn applied to it and returns
// the updated entry. fn runs under the cache lock and must not block or call
// back into the cache.
// Returns domain.ErrNotATripThread if the thread has no entry.
func (c *TripCache) Mutate(threadID string, fn func(domain.Record) domain.Record) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[threadID]
	if !ok {
		return Entry{}, fmt.Errorf("cache.TripCache.Mutate: thread %s: %w", threadID, domain.ErrNotATripThread)
	}
	e.Record = fn(e.Record)
	c.entries[threadID] = e
	return e, nil
}

// Remove drops the entry for threadID and returns it as it was at removal.
// Removing a thread without an entry returns domain.ErrNotATripThread.
func (c *TripCache) Remove(threadID string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[threadID]
	if !ok {
		return Entry{}, fmt.Errorf("cache.TripCache.Remove: thread %s: %w", threadID, domain.ErrNotATripThread)
	}
	delete(c.entries, threadID)
	return e, nil
}
