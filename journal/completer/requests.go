// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package completer

import (
	"time"

	"github.com/google/btree"

	"github.com/ava-labs/journal/ids"
)

const btreeDegree = 32

type dependencyKind byte

const (
	blockDependency dependencyKind = iota
	txDependency
)

func (k dependencyKind) String() string {
	if k == blockDependency {
		return "block"
	}
	return "transaction"
}

// request tracks the fetching of one missing dependency.
type request struct {
	dependency ids.ID
	kind       dependencyKind
	attempts   int
	deadline   time.Time
}

func lessRequest(a, b *request) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.dependency.Compare(b.dependency) < 0
}

// requests is a set of outstanding requests ordered by retry deadline.
type requests struct {
	byDependency map[ids.ID]*request
	schedule     *btree.BTreeG[*request]
}

func newRequests() *requests {
	return &requests{
		byDependency: make(map[ids.ID]*request),
		schedule:     btree.NewG(btreeDegree, lessRequest),
	}
}

func (r *requests) get(dependency ids.ID) (*request, bool) {
	req, ok := r.byDependency[dependency]
	return req, ok
}

func (r *requests) put(req *request) {
	r.byDependency[req.dependency] = req
	r.schedule.ReplaceOrInsert(req)
}

func (r *requests) remove(dependency ids.ID) {
	req, ok := r.byDependency[dependency]
	if !ok {
		return
	}
	delete(r.byDependency, dependency)
	r.schedule.Delete(req)
}

// popDue removes and returns the earliest request if its deadline is not
// after [now].
func (r *requests) popDue(now time.Time) (*request, bool) {
	req, ok := r.schedule.Min()
	if !ok || req.deadline.After(now) {
		return nil, false
	}
	r.schedule.DeleteMin()
	delete(r.byDependency, req.dependency)
	return req, true
}

func (r *requests) len() int {
	return len(r.byDependency)
}
