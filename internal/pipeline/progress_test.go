package pipeline

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReportsCounters(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	var c counters
	c.lines.Add(5)
	c.kept.Add(3)

	p := startProgress(logger, &c, func() int64 { return 2 }, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("processed=5 kept=3 cache_hits=2"))
	}, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestProgressDisabled(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	p := startProgress(logger, &counters{}, func() int64 { return 0 }, 0)
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	assert.Empty(t, out.String())
}
