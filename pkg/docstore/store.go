// Package docstore provides an in-memory cache of document chunks fronting
// the store's on-disk chunk table, so a hot chunk referenced repeatedly
// across Recall calls (the same source document cited by many memories)
// is served from Go memory instead of re-querying SQLite every time.
package docstore

import (
	"sync"

	"github.com/kittclouds/gokitt/internal/store"
)

// ChunkCache holds chunk rows in memory, keyed by chunk ID.
// Thread-safe for concurrent access from multiple Recall calls.
type ChunkCache struct {
	mu     sync.RWMutex
	chunks map[string]*store.Chunk
}

// New creates an empty chunk cache.
func New() *ChunkCache {
	return &ChunkCache{
		chunks: make(map[string]*store.Chunk),
	}
}

// Hydrate bulk-loads chunks into the cache, e.g. after a document import.
func (c *ChunkCache) Hydrate(chunks []*store.Chunk) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range chunks {
		c.chunks[ch.ID] = ch
	}
	return len(chunks)
}

// Upsert adds or replaces a single chunk.
func (c *ChunkCache) Upsert(ch *store.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chunks[ch.ID] = ch
}

// Remove evicts a chunk, e.g. after its owning document is deleted.
func (c *ChunkCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.chunks, id)
}

// Get retrieves a cached chunk by ID. Returns nil if absent.
func (c *ChunkCache) Get(id string) *store.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.chunks[id]
}

// Count returns the number of cached chunks.
func (c *ChunkCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.chunks)
}

// Clear evicts every cached chunk.
func (c *ChunkCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chunks = make(map[string]*store.Chunk)
}
