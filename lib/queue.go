package lib

import (
	"container/list"
	"iter"
)

// Queue is an unbounded first-in-first-out queue
// it is not thread safe; concurrent callers must synchronize externally
type Queue[T any] struct {
	l *list.List
}

// NewQueue() creates an empty Queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{l: list.New()}
}

// Push() appends an item to the back of the queue
func (q *Queue[T]) Push(item T) { q.init().PushBack(item) }

// PushAll() appends the items to the back of the queue in order
func (q *Queue[T]) PushAll(items ...T) {
	for _, item := range items {
		q.Push(item)
	}
}

// Pop() removes and returns the item at the front of the queue, ok is false if the queue is empty
func (q *Queue[T]) Pop() (item T, ok bool) {
	front := q.init().Front()
	if front == nil {
		return
	}
	return q.l.Remove(front).(T), true
}

// Peek() returns the item at the front of the queue without removing it
func (q *Queue[T]) Peek() (item T, ok bool) {
	front := q.init().Front()
	if front == nil {
		return
	}
	return front.Value.(T), true
}

// Len() returns the number of queued items
func (q *Queue[T]) Len() int { return q.init().Len() }

// Empty() returns true if nothing is queued
func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

// At() returns the item at index i counted from the front, ok is false if out of range
func (q *Queue[T]) At(i int) (item T, ok bool) {
	if i < 0 || i >= q.Len() {
		return
	}
	e := q.l.Front()
	for ; i > 0; i-- {
		e = e.Next()
	}
	return e.Value.(T), true
}

// Items() returns a snapshot of the queued items from front to back without removing them
func (q *Queue[T]) Items() []T {
	items := make([]T, 0, q.Len())
	for e := q.init().Front(); e != nil; e = e.Next() {
		items = append(items, e.Value.(T))
	}
	return items
}

// Drain() lazily pops items from the front until the queue is empty or the consumer stops
func (q *Queue[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := q.Pop()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Clear() removes every queued item
func (q *Queue[T]) Clear() { q.init().Init() }

// init() lazily initializes the zero value queue
func (q *Queue[T]) init() *list.List {
	if q.l == nil {
		q.l = list.New()
	}
	return q.l
}
