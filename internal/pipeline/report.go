package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/st3v3nmw/beacon-dns-lists/internal/classify"
)

// Result is everything a run produced.
type Result struct {
	RunID   string
	Rules   classify.RuleSet
	Files   []FileReport
	Stats   Stats
	Started time.Time
	Elapsed time.Duration
}

// FileReport is the outcome of reading one input file.
type FileReport struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Lines int64  `json:"lines"`
	Kept  int64  `json:"kept"`
	Err   error  `json:"-"`
}

func (r FileReport) OK() bool {
	return r.Err == nil
}

type Stats struct {
	Lines       int64 `json:"lines"`
	Comments    int64 `json:"comments"`
	Unparseable int64 `json:"unparseable"`
	Excluded    int64 `json:"excluded"`
	Invalid     int64 `json:"invalid"`
	Kept        int64 `json:"kept"`
	Duplicates  int64 `json:"duplicates"`
	CacheHits   int64 `json:"cache_hits"`
	Conflicts   int   `json:"conflicts"`
	Block       int   `json:"block"`
	Allow       int   `json:"allow"`
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("lines", s.Lines),
		slog.Int64("comments", s.Comments),
		slog.Int64("unparseable", s.Unparseable),
		slog.Int64("excluded", s.Excluded),
		slog.Int64("invalid", s.Invalid),
		slog.Int64("duplicates", s.Duplicates),
		slog.Int64("cache_hits", s.CacheHits),
		slog.Int("conflicts", s.Conflicts),
		slog.Int("block", s.Block),
		slog.Int("allow", s.Allow),
	)
}

// counters are bumped concurrently by the workers of a batch.
type counters struct {
	lines       atomic.Int64
	comments    atomic.Int64
	unparseable atomic.Int64
	excluded    atomic.Int64
	invalid     atomic.Int64
	kept        atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Lines:       c.lines.Load(),
		Comments:    c.comments.Load(),
		Unparseable: c.unparseable.Load(),
		Excluded:    c.excluded.Load(),
		Invalid:     c.invalid.Load(),
		Kept:        c.kept.Load(),
	}
}
