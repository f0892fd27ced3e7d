package threadsafe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiryMap(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewExpiryMap[string, int]()
	m.now = func() time.Time { return now }

	m.Set("a", 1, time.Minute)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, m.Has("a"))

	now = now.Add(2 * time.Minute)
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "expired entries are evicted on read")

	m.Set("b", 2, time.Minute)
	m.Delete("b")
	assert.False(t, m.Has("b"))
}

func TestSliceConcurrentAppend(t *testing.T) {
	var s Slice[int]
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())

	sum := 0
	for v := range s.All() {
		sum += v
	}
	assert.Equal(t, 4950, sum)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
