package fsys

import (
	"sync"

	"github.com/google/uuid"
)

// IdentityCache hands out synthetic identities for platforms that expose no
// durable per-file identifier. An id is minted on first discovery of a
// canonical path and reused for as long as the process lives; it does not
// survive renames.
type IdentityCache struct {
	mu  sync.Mutex
	ids map[string]FileID
}

// NewIdentityCache creates an empty cache.
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{ids: make(map[string]FileID)}
}

// Lookup returns the identity for path, minting one if needed.
func (c *IdentityCache) Lookup(path string) FileID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.ids[path]; ok {
		return id
	}
	id := FileID(uuid.NewString())
	c.ids[path] = id
	return id
}

// Forget drops the identity for path so that a recreated file gets a new one.
func (c *IdentityCache) Forget(path string) {
	c.mu.Lock()
	delete(c.ids, path)
	c.mu.Unlock()
}
