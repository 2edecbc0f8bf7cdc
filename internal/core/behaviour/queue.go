package behaviour

import (
	"github.com/dep2p/go-p2pcore/pkg/types"
)

// Queue 先进先出队列
//
// 出队后底层数组前部的空间在下一次扩容时回收。
type Queue[T any] struct {
	items []T
	head  int
}

// NewQueue 创建空队列
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push 入队
func (q *Queue[T]) Push(v T) {
	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 0 && len(q.items) == cap(q.items) && q.head >= len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.items = append(q.items, v)
}

// Pop 出队，队列为空时返回 false
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	return v, true
}

// PollPop 出队的轮询形式：为空时返回 Pending
func (q *Queue[T]) PollPop() types.Poll[T] {
	v, ok := q.Pop()
	if !ok {
		return types.Pending[T]()
	}
	return types.Ready(v)
}

// Len 当前元素个数
func (q *Queue[T]) Len() int {
	return len(q.items) - q.head
}
