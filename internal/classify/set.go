package classify

import (
	"iter"

	"github.com/st3v3nmw/beacon-dns-lists/internal/rules"
)

var fingerprint = rules.Fingerprint

// entrySet buckets entries by fingerprint. Entries sharing a fingerprint are
// told apart by their normalized form.
type entrySet struct {
	buckets map[uint64][]Entry
	size    int
}

func newEntrySet() *entrySet {
	return &entrySet{buckets: make(map[uint64][]Entry)}
}

// add stores e and reports false if an entry with the same normalized form
// is already present.
func (s *entrySet) add(e Entry) bool {
	fp := fingerprint(e.Normalized)
	for _, existing := range s.buckets[fp] {
		if existing.Normalized == e.Normalized {
			return false
		}
	}
	s.buckets[fp] = append(s.buckets[fp], e)
	s.size++
	return true
}

func (s *entrySet) has(normalized string) bool {
	for _, e := range s.buckets[fingerprint(normalized)] {
		if e.Normalized == normalized {
			return true
		}
	}
	return false
}

func (s *entrySet) len() int {
	return s.size
}

func (s *entrySet) all() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, bucket := range s.buckets {
			for _, e := range bucket {
				if !yield(e) {
					return
				}
			}
		}
	}
}
