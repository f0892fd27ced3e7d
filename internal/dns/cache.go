package dns

import (
	"log/slog"
	"math"
	"time"

	"github.com/maypok86/otter"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

// Result is the outcome of validating one domain.
type Result struct {
	Domain    string          `json:"domain"`
	Verdict   types.Verdict   `json:"verdict"`
	CheckedAt time.Time       `json:"checked_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	PerServer map[string]bool `json:"per_server"`
}

func (r *Result) Valid() bool {
	return r.Verdict == types.VerdictValid
}

func (r *Result) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Cache keeps validation results in memory, backed by an optional Store so
// verdicts survive across runs.
type Cache struct {
	entries otter.CacheWithVariableTTL[string, *Result]
	store   *Store
	now     func() time.Time
}

// NewCache builds the in-memory cache and warms it with the unexpired rows of
// store, which may be nil.
func NewCache(capacity int, store *Store) (*Cache, error) {
	entries, err := otter.MustBuilder[string, *Result](capacity).
		CollectStats().
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		entries: entries,
		store:   store,
		now:     time.Now,
	}

	if store != nil {
		results, err := store.LoadUnexpired(c.now())
		if err != nil {
			slog.Warn("Failed to load validation cache, starting empty", "error", err)
		}
		for _, r := range results {
			c.entries.Set(r.Domain, r, r.ExpiresAt.Sub(c.now()))
		}
		slog.Debug("Loaded validation cache", "entries", len(results))
	}

	return c, nil
}

// Get never returns an expired result.
func (c *Cache) Get(domain string) (*Result, bool) {
	r, ok := c.entries.Get(domain)
	if !ok {
		return nil, false
	}

	if r.Expired(c.now()) {
		c.entries.Delete(domain)
		return nil, false
	}

	return r, true
}

func (c *Cache) Set(r *Result) {
	if r.Verdict == types.VerdictUnknown {
		return
	}

	ttl := r.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}

	c.entries.Set(r.Domain, r, ttl)
	if c.store != nil {
		c.store.Save(r)
	}
}

// Prune deletes persisted results that expired before now. The in-memory
// entries expire on their own.
func (c *Cache) Prune(now time.Time) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.DeleteExpired(now)
}

func (c *Cache) Close() error {
	c.entries.Close()
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Ratio    float64 `json:"ratio"`
	Evicted  int64   `json:"evicted"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

func (c *Cache) Stats() CacheStats {
	stats := c.entries.Stats()
	return CacheStats{
		Hits:     stats.Hits(),
		Misses:   stats.Misses(),
		Ratio:    math.Round(10_000*stats.Ratio()) / 100,
		Evicted:  stats.EvictedCount(),
		Size:     c.entries.Size(),
		Capacity: c.entries.Capacity(),
	}
}
