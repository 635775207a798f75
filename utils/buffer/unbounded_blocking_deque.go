// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

import (
	"sync"

	"github.com/ava-labs/journal/utils"
)

var _ BlockingDeque[int] = (*UnboundedBlockingDeque[int])(nil)

// BlockingDeque is a thread-safe Deque whose pops block until an element is
// available. Pushes report false once the deque is closed.
type BlockingDeque[T any] interface {
	PushLeft(T) bool
	PopLeft() (T, bool)
	PeekLeft() (T, bool)
	PushRight(T) bool
	PopRight() (T, bool)
	PeekRight() (T, bool)
	Index(int) (T, bool)
	Len() int
	List() []T

	// Close and empty the deque.
	Close()
}

// Returns a new unbounded deque with the given initial size.
// Note that the returned deque is always empty -- [initSize] is just
// a hint to prevent unnecessary resizing.
func NewUnboundedBlockingDeque[T any](initSize int) *UnboundedBlockingDeque[T] {
	q := &UnboundedBlockingDeque[T]{
		deque: NewUnboundedDeque[T](initSize),
	}
	q.cond = sync.NewCond(&q.lock)
	return q
}

// UnboundedBlockingDeque is a thread-safe blocking deque with unbounded growth.
// Pops block until an element is available or the deque is closed.
type UnboundedBlockingDeque[T any] struct {
	lock   sync.Mutex
	cond   *sync.Cond
	closed bool

	deque Deque[T]
}

// If the deque is closed returns false.
func (q *UnboundedBlockingDeque[T]) PushRight(elt T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return false
	}
	q.deque.PushRight(elt)
	q.cond.Signal()
	return true
}

// If the deque is closed returns false.
func (q *UnboundedBlockingDeque[T]) PushLeft(elt T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return false
	}
	q.deque.PushLeft(elt)
	q.cond.Signal()
	return true
}

// If the deque is closed returns false.
func (q *UnboundedBlockingDeque[T]) PopRight() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for {
		if q.closed {
			return utils.Zero[T](), false
		}
		if q.deque.Len() != 0 {
			return q.deque.PopRight()
		}
		q.cond.Wait()
	}
}

// If the deque is closed returns false.
func (q *UnboundedBlockingDeque[T]) PopLeft() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for {
		if q.closed {
			return utils.Zero[T](), false
		}
		if q.deque.Len() != 0 {
			return q.deque.PopLeft()
		}
		q.cond.Wait()
	}
}

func (q *UnboundedBlockingDeque[T]) PeekRight() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return utils.Zero[T](), false
	}
	return q.deque.PeekRight()
}

func (q *UnboundedBlockingDeque[T]) PeekLeft() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return utils.Zero[T](), false
	}
	return q.deque.PeekLeft()
}

func (q *UnboundedBlockingDeque[T]) Index(i int) (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return utils.Zero[T](), false
	}
	return q.deque.Index(i)
}

func (q *UnboundedBlockingDeque[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return 0
	}
	return q.deque.Len()
}

func (q *UnboundedBlockingDeque[T]) List() []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return nil
	}
	return q.deque.List()
}

func (q *UnboundedBlockingDeque[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return
	}
	q.deque = nil
	q.closed = true
	q.cond.Broadcast()
}
