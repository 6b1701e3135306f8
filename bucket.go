// Copyright 2024-2026 Kindred Labs, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package restpool

import (
	"container/list"
	"time"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
)

// pooledConn is a pool-owned connection plus the lifetime bookkeeping
// the reuse and age caps are enforced against. Both created and
// reuseCount survive release, so a connection's caps accumulate across
// its whole pooled life.
type pooledConn struct {
	conn       *conn.Conn
	created    time.Time
	reuseCount int
}

// idleEntry holds a connection while it sits in a bucket's idle queue.
type idleEntry struct {
	pc       *pooledConn
	lastUsed time.Time
}

// waitReason records why a waiter parked. The classification is fixed
// at enqueue time and decides which secondary queue holds the waiter.
type waitReason int

const (
	// waitEndpointCapacity means the endpoint's bucket was full.
	waitEndpointCapacity waitReason = iota
	// waitGlobalCapacity means the endpoint had room but the pool-wide
	// connection total was at its cap.
	waitGlobalCapacity
)

// waiter is one parked acquirer. It lives in the pool's primary list
// and in exactly one secondary queue (a bucket's local queue or the
// pool's global queue); both element handles are kept so removal on
// timeout or adoption is O(1). A releaser adopts a waiter by removing
// it from its secondary queue, clearing active, and signalling ready
// outside the lock. The active flag, guarded by the pool mutex,
// disambiguates a natural timer expiry from an adoption that raced
// with it.
type waiter struct {
	ep     endpoint.Endpoint
	reason waitReason
	active bool
	ready  chan struct{}

	primaryElem   *list.Element
	secondaryElem *list.Element
	secondary     *list.List
}

func newWaiter(ep endpoint.Endpoint, reason waitReason) *waiter {
	return &waiter{ep: ep, reason: reason, active: true, ready: make(chan struct{}, 1)}
}

// signal wakes the adopted waiter. Called outside the pool lock; the
// buffered channel makes it non-blocking even if the waiter already
// left on a timeout it has not yet observed.
func (w *waiter) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// bucket owns everything the pool tracks for one endpoint: the idle
// queue, the in-use map, the local waiter queue, and the circuit
// breaker state. All fields are guarded by the pool's mutex.
type bucket struct {
	ep endpoint.Endpoint

	idle  []idleEntry
	inUse map[uint64]*pooledConn

	localWaiters *list.List

	consecutiveFailures int
	openUntil           time.Time
}

func newBucket(ep endpoint.Endpoint) *bucket {
	return &bucket{
		ep:           ep,
		inUse:        make(map[uint64]*pooledConn),
		localWaiters: list.New(),
	}
}

// openCount is the number of connections this bucket currently owns,
// idle or lent out.
func (b *bucket) openCount() int {
	return len(b.idle) + len(b.inUse)
}

// popIdle removes and returns the head of the idle queue, or nil.
func (b *bucket) popIdle() (idleEntry, bool) {
	if len(b.idle) == 0 {
		return idleEntry{}, false
	}
	entry := b.idle[0]
	b.idle[0] = idleEntry{}
	b.idle = b.idle[1:]
	return entry, true
}

// pushIdle appends an entry at the tail, preserving rough LRU order.
func (b *bucket) pushIdle(entry idleEntry) {
	b.idle = append(b.idle, entry)
}
