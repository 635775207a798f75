// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feed fans values out to filtered subscribers.
package feed

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ava-labs/journal/utils/logging"
)

const DefaultBufferSize = 256

// Filter returns what a subscriber receives for [v], or false if it receives
// nothing.
type Filter[T any] func(v T) (T, bool)

// Feed delivers values to subscribers without blocking the sender. A
// subscriber that falls [bufferSize] values behind is closed.
type Feed[T any] struct {
	log        logging.Logger
	name       string
	bufferSize int

	lock   sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription[T]
}

func New[T any](name string, bufferSize int, log logging.Logger) *Feed[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Feed[T]{
		log:        log,
		name:       name,
		bufferSize: bufferSize,
		subs:       make(map[uint64]*Subscription[T]),
	}
}

// Subscribe registers a subscriber. A nil [filter] receives every value.
func (f *Feed[T]) Subscribe(filter Filter[T]) *Subscription[T] {
	f.lock.Lock()
	defer f.lock.Unlock()

	sub := &Subscription[T]{
		feed:   f,
		id:     f.nextID,
		filter: filter,
		ch:     make(chan T, f.bufferSize),
	}
	f.nextID++
	f.subs[sub.id] = sub
	return sub
}

// Send delivers [v] to every matching subscriber and returns how many
// received it.
func (f *Feed[T]) Send(v T) int {
	f.lock.Lock()
	defer f.lock.Unlock()

	delivered := 0
	for id, sub := range f.subs {
		out := v
		if sub.filter != nil {
			var ok bool
			out, ok = sub.filter(v)
			if !ok {
				continue
			}
		}
		select {
		case sub.ch <- out:
			delivered++
		default:
			f.log.Warn("closing slow subscriber",
				zap.String("feed", f.name),
				zap.Uint64("subscriptionID", id),
			)
			f.remove(sub)
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (f *Feed[T]) Len() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return len(f.subs)
}

// Close closes every subscription.
func (f *Feed[T]) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, sub := range f.subs {
		f.remove(sub)
	}
}

func (f *Feed[T]) remove(sub *Subscription[T]) {
	if _, ok := f.subs[sub.id]; !ok {
		return
	}
	delete(f.subs, sub.id)
	close(sub.ch)
}

type Subscription[T any] struct {
	feed   *Feed[T]
	id     uint64
	filter Filter[T]
	ch     chan T
}

// Values is closed once the subscription is closed.
func (s *Subscription[T]) Values() <-chan T {
	return s.ch
}

func (s *Subscription[T]) Close() {
	s.feed.lock.Lock()
	defer s.feed.lock.Unlock()

	s.feed.remove(s)
}
