package id

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SortsInCreationOrder(t *testing.T) {
	t.Parallel()

	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Len(t, next, 26)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestGenerator_DeterministicWithFixedInputs(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return at }

	a := NewGenerator(clock, bytes.NewReader(make([]byte, 64)))
	b := NewGenerator(clock, bytes.NewReader(make([]byte, 64)))
	assert.Equal(t, a.Next(), b.Next())

	ts, err := Time(a.Next())
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))
}

func TestTime_RejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
