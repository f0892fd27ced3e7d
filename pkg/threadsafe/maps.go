package threadsafe

import (
	"sync"
	"time"
)

// ExpiryMap is a map whose entries disappear once their TTL elapses.
type ExpiryMap[K comparable, V any] struct {
	sync.RWMutex
	items map[K]item[V]
	now   func() time.Time
}

type item[V any] struct {
	value      V
	expiration time.Time
}

func NewExpiryMap[K comparable, V any]() *ExpiryMap[K, V] {
	return &ExpiryMap[K, V]{
		items: make(map[K]item[V]),
		now:   time.Now,
	}
}

func (m *ExpiryMap[K, V]) Set(key K, value V, ttl time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.items[key] = item[V]{
		value:      value,
		expiration: m.now().Add(ttl),
	}
}

func (m *ExpiryMap[K, V]) Get(key K) (V, bool) {
	m.RLock()
	item, ok := m.items[key]
	m.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if m.now().After(item.expiration) {
		m.Lock()
		// re-check, the entry may have been refreshed meanwhile
		if cur, ok := m.items[key]; ok && m.now().After(cur.expiration) {
			delete(m.items, key)
		}
		m.Unlock()
		return zero, false
	}

	return item.value, true
}

func (m *ExpiryMap[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *ExpiryMap[K, V]) Delete(key K) {
	m.Lock()
	delete(m.items, key)
	m.Unlock()
}

func (m *ExpiryMap[K, V]) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.items)
}

func (m *ExpiryMap[K, V]) Clear() {
	m.Lock()
	clear(m.items)
	m.Unlock()
}
