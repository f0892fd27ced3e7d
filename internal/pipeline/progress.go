package pipeline

import (
	"log/slog"
	"sync"
	"time"
)

// progress logs running totals on a ticker. It only reads atomic counters,
// so it never holds up the workers.
type progress struct {
	logger    *slog.Logger
	counters  *counters
	cacheHits func() int64
	interval  time.Duration
	wg        sync.WaitGroup
	shutdown  chan struct{}
}

func startProgress(logger *slog.Logger, c *counters, cacheHits func() int64, interval time.Duration) *progress {
	p := &progress{
		logger:    logger,
		counters:  c,
		cacheHits: cacheHits,
		interval:  interval,
		shutdown:  make(chan struct{}),
	}

	if interval > 0 {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *progress) worker() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.report()
		case <-p.shutdown:
			return
		}
	}
}

func (p *progress) report() {
	p.logger.Info(
		"Progress",
		"processed", p.counters.lines.Load(),
		"kept", p.counters.kept.Load(),
		"cache_hits", p.cacheHits(),
	)
}

func (p *progress) Stop() {
	close(p.shutdown)
	p.wg.Wait()
}
