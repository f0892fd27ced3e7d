package dns

import (
	"sync"
	"time"

	"github.com/st3v3nmw/beacon-dns-lists/pkg/threadsafe"
)

// skip an upstream for a while after it fails this many domains in a row
const (
	circuitFailThreshold = 3
	circuitOpenDuration  = 30 * time.Second
)

type breaker struct {
	mu       sync.Mutex
	failures map[string]int
	open     *threadsafe.ExpiryMap[string, struct{}]
}

func newBreaker() *breaker {
	return &breaker{
		failures: make(map[string]int),
		open:     threadsafe.NewExpiryMap[string, struct{}](),
	}
}

func (b *breaker) Allow(id string) bool {
	return !b.open.Has(id)
}

// Failure records a failed attempt and reports whether it tripped the circuit.
func (b *breaker) Failure(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[id]++
	if b.failures[id] < circuitFailThreshold {
		return false
	}

	b.failures[id] = 0
	b.open.Set(id, struct{}{}, circuitOpenDuration)
	return true
}

func (b *breaker) Success(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.failures, id)
	b.open.Delete(id)
}
