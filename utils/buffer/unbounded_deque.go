// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package buffer

import "github.com/ava-labs/journal/utils"

const defaultInitSize = 32

// Deque is a double-ended queue. Not safe for concurrent use.
type Deque[T any] interface {
	// Place an element at the leftmost end of the deque.
	PushLeft(T)
	// Remove and return the leftmost element of the deque.
	// Returns false if the deque is empty.
	PopLeft() (T, bool)
	// Return the leftmost element of the deque without removing it.
	PeekLeft() (T, bool)
	PushRight(T)
	PopRight() (T, bool)
	PeekRight() (T, bool)
	// Returns the element at the given index, 0 being the leftmost.
	Index(int) (T, bool)
	Len() int
	// Returns the elements of the deque from left to right.
	List() []T
}

// NewUnboundedDeque returns an empty deque backed by a ring buffer that
// doubles when full. [initSize] is only a capacity hint.
func NewUnboundedDeque[T any](initSize int) Deque[T] {
	if initSize < 2 {
		initSize = defaultInitSize
	}
	return &unboundedSliceDeque[T]{
		data: make([]T, initSize),
	}
}

type unboundedSliceDeque[T any] struct {
	// index of the leftmost element
	head int
	size int
	data []T
}

func (b *unboundedSliceDeque[T]) PushLeft(elt T) {
	b.grow()
	b.head = (b.head - 1 + len(b.data)) % len(b.data)
	b.data[b.head] = elt
	b.size++
}

func (b *unboundedSliceDeque[T]) PopLeft() (T, bool) {
	if b.size == 0 {
		return utils.Zero[T](), false
	}
	elt := b.data[b.head]
	b.data[b.head] = utils.Zero[T]()
	b.head = (b.head + 1) % len(b.data)
	b.size--
	return elt, true
}

func (b *unboundedSliceDeque[T]) PeekLeft() (T, bool) {
	return b.Index(0)
}

func (b *unboundedSliceDeque[T]) PushRight(elt T) {
	b.grow()
	b.data[(b.head+b.size)%len(b.data)] = elt
	b.size++
}

func (b *unboundedSliceDeque[T]) PopRight() (T, bool) {
	if b.size == 0 {
		return utils.Zero[T](), false
	}
	i := (b.head + b.size - 1) % len(b.data)
	elt := b.data[i]
	b.data[i] = utils.Zero[T]()
	b.size--
	return elt, true
}

func (b *unboundedSliceDeque[T]) PeekRight() (T, bool) {
	return b.Index(b.size - 1)
}

func (b *unboundedSliceDeque[T]) Index(idx int) (T, bool) {
	if idx < 0 || idx >= b.size {
		return utils.Zero[T](), false
	}
	return b.data[(b.head+idx)%len(b.data)], true
}

func (b *unboundedSliceDeque[T]) Len() int {
	return b.size
}

func (b *unboundedSliceDeque[T]) List() []T {
	list := make([]T, b.size)
	for i := range list {
		list[i] = b.data[(b.head+i)%len(b.data)]
	}
	return list
}

func (b *unboundedSliceDeque[T]) grow() {
	if b.size < len(b.data) {
		return
	}
	newData := make([]T, 2*len(b.data))
	copy(newData, b.List())
	b.data = newData
	b.head = 0
}
