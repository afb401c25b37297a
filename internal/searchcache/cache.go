// Package searchcache remembers keyword search results for one conversation.
package searchcache

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultHits bounds how many keywords with matches are kept.
const DefaultHits = 1024

// Cache maps a normalized keyword to the relative paths that contain it.
// Keywords with matches live in a bounded LRU; an evicted one is simply
// searched again. Confirmed absences are never evicted because loop
// detection depends on them.
type Cache struct {
	mu     sync.RWMutex
	hits   *lru.Cache[string, []string]
	absent map[string]struct{}
}

// New returns a cache keeping up to DefaultHits keywords with matches.
func New() *Cache {
	return NewSize(DefaultHits)
}

// NewSize returns a cache keeping up to size keywords with matches.
func NewSize(size int) *Cache {
	if size <= 0 {
		size = DefaultHits
	}
	hits, err := lru.New[string, []string](size)
	if err != nil {
		panic(err) // only for size <= 0
	}
	return &Cache{hits: hits, absent: make(map[string]struct{})}
}

func normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Get returns a copy of the cached paths for keyword. A confirmed absence
// reports ok with no paths.
func (c *Cache) Get(keyword string) ([]string, bool) {
	k := normalize(keyword)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.absent[k]; ok {
		return []string{}, true
	}
	paths, ok := c.hits.Get(k)
	if !ok {
		return nil, false
	}
	return append([]string{}, paths...), true
}

// Put stores paths for keyword. A nil or empty slice marks it absent.
func (c *Cache) Put(keyword string, paths []string) {
	k := normalize(keyword)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(paths) == 0 {
		c.hits.Remove(k)
		c.absent[k] = struct{}{}
		return
	}
	delete(c.absent, k)
	c.hits.Add(k, append([]string{}, paths...))
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits.Len() + len(c.absent)
}

// Absent lists keywords confirmed to have no matches, sorted.
func (c *Cache) Absent() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.absent))
	for k := range c.absent {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
