package memory

import (
	"context"
	"sync"
	"time"
)

// CompletedCache keeps each registrant's completed quest ids for a TTL.
// Every Invalidate bumps a per-uid generation so a fill computed before it is dropped.
type CompletedCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]completedEntry
	gens    map[string]int64
}

type completedEntry struct {
	ids       []int64
	expiresAt time.Time
}

func NewCompletedCache(ttl time.Duration) *CompletedCache {
	return &CompletedCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]completedEntry),
		gens:    make(map[string]int64),
	}
}

func (c *CompletedCache) Get(_ context.Context, uid string) ([]int64, int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	gen := c.gens[uid]
	entry, ok := c.entries[uid]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, gen, false, nil
	}
	ids := make([]int64, len(entry.ids))
	copy(ids, entry.ids)
	return ids, gen, true, nil
}

// Set stores the ids only if no Invalidate happened since the Get that returned gen.
func (c *CompletedCache) Set(_ context.Context, uid string, questIDs []int64, gen int64) error {
	if c.ttl <= 0 {
		return nil
	}
	ids := make([]int64, len(questIDs))
	copy(ids, questIDs)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[uid] != gen {
		return nil
	}
	c.entries[uid] = completedEntry{ids: ids, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *CompletedCache) Invalidate(_ context.Context, uid string) error {
	c.mu.Lock()
	c.gens[uid]++
	delete(c.entries, uid)
	c.mu.Unlock()
	return nil
}
