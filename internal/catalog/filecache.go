package catalog

import (
	"encoding/hex"
	"os"
	"sync"

	"lukechampine.com/blake3"
)

// hashBytes returns the BLAKE3 hash of b.
func hashBytes(b []byte) string {
	h := blake3.New(32, nil)
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

type cachedDoc struct {
	hash string
	doc  any
}

// parseCache memoizes parsed documents by content hash so that a rescan only
// decodes files whose bytes changed. Cached documents are shared between
// scans and must be treated as read-only.
type parseCache struct {
	mu      sync.Mutex
	entries map[string]cachedDoc
	seen    map[string]struct{}
	hits    int
	misses  int
}

func newParseCache() *parseCache {
	return &parseCache{
		entries: make(map[string]cachedDoc),
		seen:    make(map[string]struct{}),
	}
}

// begin starts a scan generation.
func (c *parseCache) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]struct{})
	c.hits, c.misses = 0, 0
}

// end drops entries for files that were not visited during the generation.
func (c *parseCache) end() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.entries {
		if _, ok := c.seen[path]; !ok {
			delete(c.entries, path)
		}
	}
	return c.hits, c.misses
}

// load reads path and returns its parsed document, calling parse only when the
// content hash differs from the cached one.
func (c *parseCache) load(path string, parse func(path string, data []byte) (any, error)) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := hashBytes(data)

	c.mu.Lock()
	c.seen[path] = struct{}{}
	if e, ok := c.entries[path]; ok && e.hash == sum {
		c.hits++
		c.mu.Unlock()
		return e.doc, nil
	}
	c.misses++
	c.mu.Unlock()

	doc, err := parse(path, data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cachedDoc{hash: sum, doc: doc}
	c.mu.Unlock()
	return doc, nil
}

// forget removes path from the cache.
func (c *parseCache) forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}
