// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package linked

import "container/list"

type keyValue[K comparable, V any] struct {
	key   K
	value V
}

// Hashmap provides an ordered O(1) mapping from keys to values.
//
// Entries are tracked by insertion order.
type Hashmap[K comparable, V any] struct {
	entryMap  map[K]*list.Element
	entryList *list.List
}

func NewHashmap[K comparable, V any]() *Hashmap[K, V] {
	return NewHashmapWithSize[K, V](0)
}

func NewHashmapWithSize[K comparable, V any](initialSize int) *Hashmap[K, V] {
	return &Hashmap[K, V]{
		entryMap:  make(map[K]*list.Element, initialSize),
		entryList: list.New(),
	}
}

// Put inserts or updates [key]. The entry is moved to the newest position.
func (lh *Hashmap[K, V]) Put(key K, value V) {
	if e, ok := lh.entryMap[key]; ok {
		lh.entryList.MoveToBack(e)
		e.Value = keyValue[K, V]{
			key:   key,
			value: value,
		}
		return
	}

	lh.entryMap[key] = lh.entryList.PushBack(keyValue[K, V]{
		key:   key,
		value: value,
	})
}

func (lh *Hashmap[K, V]) Get(key K) (V, bool) {
	if e, ok := lh.entryMap[key]; ok {
		kv := e.Value.(keyValue[K, V])
		return kv.value, true
	}
	var zero V
	return zero, false
}

func (lh *Hashmap[K, V]) Delete(key K) bool {
	e, ok := lh.entryMap[key]
	if !ok {
		return false
	}
	lh.remove(key, e)
	return true
}

func (lh *Hashmap[K, V]) remove(key K, e *list.Element) {
	lh.entryList.Remove(e)
	delete(lh.entryMap, key)
}

func (lh *Hashmap[K, V]) Clear() {
	for key, e := range lh.entryMap {
		lh.remove(key, e)
	}
}

func (lh *Hashmap[K, V]) Len() int {
	return len(lh.entryMap)
}

func (lh *Hashmap[K, V]) Oldest() (K, V, bool) {
	if e := lh.entryList.Front(); e != nil {
		kv := e.Value.(keyValue[K, V])
		return kv.key, kv.value, true
	}
	var (
		k K
		v V
	)
	return k, v, false
}

func (lh *Hashmap[K, V]) Newest() (K, V, bool) {
	if e := lh.entryList.Back(); e != nil {
		kv := e.Value.(keyValue[K, V])
		return kv.key, kv.value, true
	}
	var (
		k K
		v V
	)
	return k, v, false
}

func (lh *Hashmap[K, V]) NewIterator() *Iterator[K, V] {
	return &Iterator[K, V]{lh: lh}
}

// Iterates over the keys and values in a Hashmap from oldest to newest.
// Assumes the underlying Hashmap is not modified while the iterator is in use,
// except to delete elements that have already been iterated over.
type Iterator[K comparable, V any] struct {
	lh          *Hashmap[K, V]
	key         K
	value       V
	next        *list.Element
	initialized bool
	exhausted   bool
}

func (it *Iterator[K, V]) Next() bool {
	// If the iterator has been exhausted, there is no next value.
	if it.exhausted {
		var (
			k K
			v V
		)
		it.key = k
		it.value = v
		it.next = nil
		return false
	}

	// If the iterator was not yet initialized, do it now.
	if !it.initialized {
		it.initialized = true
		it.next = it.lh.entryList.Front()
	}

	// It's important to ensure that [it.next] is not nil
	// by not deleting elements that have not yet been iterated
	// over from [it.lh]
	if it.next == nil {
		it.exhausted = true
		return it.Next()
	}
	kv := it.next.Value.(keyValue[K, V])
	it.key = kv.key
	it.value = kv.value
	it.next = it.next.Next() // Next time, return next element
	return true
}

func (it *Iterator[K, V]) Key() K {
	return it.key
}

func (it *Iterator[K, V]) Value() V {
	return it.value
}
