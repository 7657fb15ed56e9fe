package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/gearboxhq/gearbox/pkg/models"
)

const (
	dedupSuppressWindow = 1 * time.Second
	dedupSweepAfter     = 5 * time.Second
)

// DedupCache suppresses repeat executions of the same (workflow, entity,
// trigger type) within a short window, absorbing duplicate event delivery.
// It is owned by the engine instance and process-local: it does not provide
// cross-instance deduplication.
type DedupCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewDedupCache creates an empty cache.
func NewDedupCache() *DedupCache {
	return &DedupCache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetNowFunc replaces the clock. Test use only.
func (c *DedupCache) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Suppress reports whether an execution for the key happened within the
// suppression window, recording this one otherwise. Entries older than the
// sweep horizon are dropped opportunistically on every call.
func (c *DedupCache) Suppress(workflowID, entityID string, triggerType models.TriggerType) bool {
	key := strings.Join([]string{workflowID, entityID, string(triggerType)}, "|")
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, seen := range c.entries {
		if now.Sub(seen) > dedupSweepAfter {
			delete(c.entries, k)
		}
	}

	if seen, ok := c.entries[key]; ok && now.Sub(seen) < dedupSuppressWindow {
		return true
	}

	c.entries[key] = now

	return false
}

// Len reports the current entry count. Test use only.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
