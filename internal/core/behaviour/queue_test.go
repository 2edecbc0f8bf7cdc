package behaviour

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	assert.True(t, q.PollPop().IsPending())

	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		p := q.PollPop()
		assert.True(t, p.IsReady())
		assert.Equal(t, i, p.Value)
	}
	assert.True(t, q.PollPop().IsPending())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_InterleavedReusesSpace(t *testing.T) {
	q := NewQueue[int]()
	next := 0
	for round := 0; round < 1000; round++ {
		q.Push(round * 2)
		q.Push(round*2 + 1)
		v, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, next, v)
		next++
	}
	assert.Equal(t, 1000, q.Len())
	assert.LessOrEqual(t, cap(q.items), 4096)

	for q.Len() > 0 {
		v, _ := q.Pop()
		assert.Equal(t, next, v)
		next++
	}
	assert.Equal(t, 2000, next)
}
