package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuard_FreshKey(t *testing.T) {
	g := New(5*time.Minute, 100)

	assert.False(t, g.Seen("evt-1"), "first sighting is not a duplicate")
	assert.True(t, g.Seen("evt-1"), "second sighting is a duplicate")
}

func TestGuard_DistinctKeys(t *testing.T) {
	g := New(5*time.Minute, 100)

	assert.False(t, g.Seen("evt-1"))
	assert.False(t, g.Seen("evt-2"))
	assert.False(t, g.Seen("evt-3"))
	assert.Equal(t, 3, g.Len())
}

func TestGuard_Expiry(t *testing.T) {
	g := New(10*time.Millisecond, 100)

	assert.False(t, g.Seen("evt-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, g.Seen("evt-1"), "expired key counts as fresh")
}

func TestGuard_Eviction(t *testing.T) {
	g := New(5*time.Minute, 3)

	for i := 0; i < 5; i++ {
		g.Seen(fmt.Sprintf("evt-%d", i))
	}

	assert.Equal(t, 3, g.Len())
	// The oldest keys were evicted and read as fresh again
	assert.False(t, g.Seen("evt-0"))
}

func TestGuard_Concurrent(t *testing.T) {
	g := New(5*time.Minute, 1000)

	var wg sync.WaitGroup
	duplicates := make([]int, 10)
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if g.Seen(fmt.Sprintf("evt-%d", i)) {
					duplicates[n]++
				}
			}
		}(w)
	}
	wg.Wait()

	// Each of the 100 keys is fresh exactly once across all workers
	total := 0
	for _, d := range duplicates {
		total += d
	}
	assert.Equal(t, 10*100-100, total)
}
