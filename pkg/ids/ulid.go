package ids

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/exp/rand"
)

var (
	entropySource = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	entropy       = ulid.Monotonic(entropySource, 0)
	entropyMu     sync.Mutex
)

// NewRunID returns a lexically sortable identifier for a pipeline run.
func NewRunID() string {
	return NewRunIDAt(time.Now())
}

func NewRunIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// monotonic entropy overflowed within the same millisecond
		return ulid.MustNew(ulid.Timestamp(t), entropySource).String()
	}

	return id.String()
}
