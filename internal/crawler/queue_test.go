package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.IsEmpty())

	q.Push(QueueEntry{URL: "a", Depth: 0})
	q.Push(QueueEntry{URL: "b", Depth: 1})
	q.Push(QueueEntry{URL: "c", Depth: 1})
	assert.Equal(t, 3, q.Size())

	for _, want := range []string{"a", "b", "c"} {
		entry, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, want, entry.URL)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestQueueVisited(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.MarkVisited("a"))
	assert.False(t, q.MarkVisited("a"))
	assert.True(t, q.IsVisited("a"))
	assert.False(t, q.IsVisited("b"))

	assert.False(t, q.Push(QueueEntry{URL: "a"}), "visited URLs are not queued again")
	assert.True(t, q.Push(QueueEntry{URL: "b"}))
	assert.Equal(t, 1, q.Size())
	assert.Equal(t, 1, q.VisitedCount())
}
