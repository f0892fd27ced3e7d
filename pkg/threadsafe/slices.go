package threadsafe

import (
	"iter"
	"sync"
)

type Slice[T any] struct {
	sync.RWMutex
	items []T
}

func (s *Slice[T]) Append(item T) {
	s.Lock()
	defer s.Unlock()
	s.items = append(s.items, item)
}

func (s *Slice[T]) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.items)
}

// All yields a snapshot of the items, so the caller may Append while ranging.
func (s *Slice[T]) All() iter.Seq[T] {
	s.RLock()
	snapshot := make([]T, len(s.items))
	copy(snapshot, s.items)
	s.RUnlock()

	return func(yield func(T) bool) {
		for _, item := range snapshot {
			if !yield(item) {
				return
			}
		}
	}
}

func (s *Slice[T]) Clear() {
	s.Lock()
	defer s.Unlock()
	s.items = s.items[:0]
}
