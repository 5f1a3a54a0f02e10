package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrdersByInstant(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	q := newQueue()
	for i, off := range []int{50, 10, 30, 10, 0, 40} {
		q.push(Reminder{At: base.Add(time.Duration(off) * time.Second), Line: string(rune('a' + i)), LineNo: i + 1})
	}
	require.Equal(t, 6, q.len())

	var prev time.Time
	for q.len() > 0 {
		r, ok := q.pop()
		require.True(t, ok)
		assert.False(t, r.At.Before(prev), "pop order must be non-decreasing")
		prev = r.At
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestQueueDedupsByLine(t *testing.T) {
	t.Parallel()
	q := newQueue()
	at := time.Unix(10, 0)
	assert.True(t, q.push(Reminder{At: at, Line: "* x [^10:remind me in 1 s]\n"}))
	assert.False(t, q.push(Reminder{At: at, Line: "* x [^10:remind me in 1 s]\n"}))
	assert.Equal(t, 1, q.len())

	r, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, at, r.At)

	_, _ = q.pop()
	assert.True(t, q.push(Reminder{At: at, Line: "* x [^10:remind me in 1 s]\n"}), "popped lines may come back")
}

func TestQueueTiesBreakByLine(t *testing.T) {
	t.Parallel()
	q := newQueue()
	at := time.Unix(10, 0)
	q.push(Reminder{At: at, Line: "b", LineNo: 2})
	q.push(Reminder{At: at, Line: "a", LineNo: 1})
	r, _ := q.pop()
	assert.Equal(t, 1, r.LineNo)
}
