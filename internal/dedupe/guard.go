// ABOUTME: TTL and size-bounded seen-set for duplicate transport event delivery
// ABOUTME: Consulted by event sources before handing an event to the relay engine

package dedupe

import (
	"sync"
	"time"
)

// Guard tracks recently seen platform event identifiers so a duplicate
// delivery of the same event is processed at most once. Entries expire
// after the TTL; when the guard is full the oldest entry is evicted.
type Guard struct {
	mu      sync.Mutex
	ttl     time.Duration
	limit   int
	entries map[string]time.Time
	queue   []string // keys in insertion order, oldest first
}

// New creates a guard with the given TTL and maximum entry count.
func New(ttl time.Duration, limit int) *Guard {
	return &Guard{
		ttl:     ttl,
		limit:   limit,
		entries: make(map[string]time.Time),
	}
}

// Seen atomically checks whether key was observed within the TTL and marks
// it observed if not. Returns true for a duplicate, false for a fresh key
// that is now marked. The single check-and-mark call avoids the TOCTOU
// window separate check/mark operations would open.
func (g *Guard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if t, ok := g.entries[key]; ok && now.Sub(t) < g.ttl {
		return true
	}

	g.entries[key] = now
	g.queue = append(g.queue, key)
	g.pruneLocked(now)
	return false
}

// Len returns the number of live entries.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// pruneLocked drops expired entries from the front of the queue and, when
// over the size limit, evicts the oldest live entries. Must be called with
// mu held.
func (g *Guard) pruneLocked(now time.Time) {
	for len(g.queue) > 0 {
		key := g.queue[0]
		t, live := g.entries[key]
		stale := !live || now.Sub(t) >= g.ttl
		if !stale && len(g.entries) <= g.limit {
			return
		}
		g.queue = g.queue[1:]
		if live {
			delete(g.entries, key)
		}
	}
}
