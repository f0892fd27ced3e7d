package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunIDIsSortable(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	first := NewRunIDAt(at)
	second := NewRunIDAt(at)
	later := NewRunIDAt(at.Add(time.Second))

	assert.Less(t, first, second, "monotonic within the same millisecond")
	assert.Less(t, second, later)

	parsed, err := ulid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
}
