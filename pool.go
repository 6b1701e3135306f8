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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
	"github.com/kindredlabs/restpool/internal"
	"github.com/kindredlabs/restpool/internal/obs"
	"github.com/kindredlabs/restpool/resterr"
)

// Default pool configuration values, applied by PoolConfig.normalize
// for any field left at its zero value.
const (
	DefaultMaxTotalConnections         = 10
	DefaultMaxConnectionsPerEndpoint   = 5
	DefaultConnectionIdleTTL           = 30 * time.Second
	DefaultMaxConnectionReuseCount     = 1000
	DefaultMaxConnectionAge            = 300 * time.Second
	DefaultCircuitBreakerFailThreshold = 5
	DefaultCircuitBreakerTimeout       = 30 * time.Second
)

// drainPollInterval is how often Drain re-checks the in-use count.
const drainPollInterval = 100 * time.Millisecond

// PoolConfig bounds the pool's connection lifecycle. The zero value of
// each numeric field means "use the default"; the boolean close flags
// default to true via NewPoolConfig.
type PoolConfig struct {
	MaxTotalConnections       int
	MaxConnectionsPerEndpoint int
	ConnectionIdleTTL         time.Duration
	MaxConnectionReuseCount   int
	MaxConnectionAge          time.Duration
	CloseOnPrune              bool
	CloseOnShutdown           bool

	CircuitBreakerFailureThreshold int
	CircuitBreakerTimeout          time.Duration
}

// NewPoolConfig returns the default configuration.
func NewPoolConfig() PoolConfig {
	return PoolConfig{
		MaxTotalConnections:            DefaultMaxTotalConnections,
		MaxConnectionsPerEndpoint:      DefaultMaxConnectionsPerEndpoint,
		ConnectionIdleTTL:              DefaultConnectionIdleTTL,
		MaxConnectionReuseCount:        DefaultMaxConnectionReuseCount,
		MaxConnectionAge:               DefaultMaxConnectionAge,
		CloseOnPrune:                   true,
		CloseOnShutdown:                true,
		CircuitBreakerFailureThreshold: DefaultCircuitBreakerFailThreshold,
		CircuitBreakerTimeout:          DefaultCircuitBreakerTimeout,
	}
}

func (c PoolConfig) normalize() PoolConfig {
	if c.MaxTotalConnections <= 0 {
		c.MaxTotalConnections = DefaultMaxTotalConnections
	}
	if c.MaxConnectionsPerEndpoint <= 0 {
		c.MaxConnectionsPerEndpoint = DefaultMaxConnectionsPerEndpoint
	}
	if c.ConnectionIdleTTL <= 0 {
		c.ConnectionIdleTTL = DefaultConnectionIdleTTL
	}
	if c.MaxConnectionReuseCount <= 0 {
		c.MaxConnectionReuseCount = DefaultMaxConnectionReuseCount
	}
	if c.MaxConnectionAge <= 0 {
		c.MaxConnectionAge = DefaultMaxConnectionAge
	}
	if c.CircuitBreakerFailureThreshold <= 0 {
		c.CircuitBreakerFailureThreshold = DefaultCircuitBreakerFailThreshold
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = DefaultCircuitBreakerTimeout
	}
	return c
}

// Pool lends connections per endpoint. Acquirers that find the pool
// full park in FIFO order, classified by whether they are waiting on
// endpoint capacity or global capacity; a release into endpoint X
// wakes the oldest local waiter for X, else the oldest global waiter.
// The pool never dials: connections are created unconnected and the
// lease holder drives the actual I/O.
//
// The pool is safe for concurrent use. One mutex guards the buckets,
// waiter lists, and counters; it is never held across a suspension or
// a wake signal.
type Pool struct {
	config   PoolConfig
	connOpts conn.Options
	clock    internal.Clock
	logger   obs.Logger

	alive   atomic.Bool
	metrics Metrics

	mu             sync.Mutex
	buckets        map[endpoint.Endpoint]*bucket
	primaryWaiters *list.List
	globalWaiters  *list.List
	totalInUse     int
	totalOpen      int
	nextID         uint64
}

// NewPool creates a pool with the given configuration. The connection
// options are applied to every connection the pool creates.
func NewPool(config PoolConfig, connOpts conn.Options) *Pool {
	return newPool(config, connOpts, internal.NewRealClock(), obs.NopLogger{})
}

func newPool(config PoolConfig, connOpts conn.Options, clock internal.Clock, logger obs.Logger) *Pool {
	pool := &Pool{
		config:         config.normalize(),
		connOpts:       connOpts,
		clock:          clock,
		logger:         logger,
		buckets:        make(map[endpoint.Endpoint]*bucket),
		primaryWaiters: list.New(),
		globalWaiters:  list.New(),
	}
	pool.alive.Store(true)
	return pool
}

// Metrics returns the pool's live counters and gauges.
func (p *Pool) Metrics() *Metrics {
	return &p.metrics
}

// TryAcquire attempts a non-blocking acquisition for ep. It returns
// nil when the pool is shut down, the endpoint's circuit is open, or
// no capacity is available.
func (p *Pool) TryAcquire(ep endpoint.Endpoint) *Lease {
	ep = ep.Normalize()
	p.mu.Lock()
	lease := p.tryAcquireLocked(ep)
	p.mu.Unlock()
	return lease
}

// Acquire obtains a lease for ep, waiting up to timeout for capacity.
// A nonpositive timeout waits indefinitely. Cancellation of ctx and
// timer expiry both surface as KindTimeout; pool shutdown surfaces as
// KindUnknown. Waiters are served FIFO within their capacity class.
func (p *Pool) Acquire(ctx context.Context, ep endpoint.Endpoint, timeout time.Duration) (*Lease, error) {
	ep = ep.Normalize()
	for {
		if lease := p.TryAcquire(ep); lease != nil {
			p.metrics.AcquireSuccess.Add(1)
			return lease, nil
		}
		if !p.alive.Load() {
			p.metrics.AcquireShutdown.Add(1)
			return nil, resterr.New(resterr.KindUnknown, "pool is shut down")
		}

		var timer internal.Timer
		var timerCh <-chan time.Time
		if timeout > 0 {
			timer = p.clock.NewTimer(timeout)
			timerCh = timer.Chan()
		}

		w := newWaiter(ep, waitEndpointCapacity)
		p.mu.Lock()
		if !p.alive.Load() {
			p.mu.Unlock()
			stopTimer(timer)
			p.metrics.AcquireShutdown.Add(1)
			return nil, resterr.New(resterr.KindUnknown, "pool is shut down")
		}
		bkt := p.bucketLocked(ep)
		if bkt.openCount() >= p.config.MaxConnectionsPerEndpoint {
			w.reason = waitEndpointCapacity
			w.secondary = bkt.localWaiters
		} else {
			w.reason = waitGlobalCapacity
			w.secondary = p.globalWaiters
		}
		w.primaryElem = p.primaryWaiters.PushBack(w)
		w.secondaryElem = w.secondary.PushBack(w)
		p.metrics.WaitersTotal.Add(1)
		// Close the lost-wakeup window: capacity may have freed between
		// the fast path and the enqueue.
		if lease := p.tryAcquireLocked(ep); lease != nil {
			p.removeWaiterLocked(w)
			p.mu.Unlock()
			stopTimer(timer)
			p.metrics.AcquireSuccess.Add(1)
			return lease, nil
		}
		p.mu.Unlock()

		select {
		case <-w.ready:
			p.mu.Lock()
			p.removeWaiterLocked(w)
			p.mu.Unlock()
			stopTimer(timer)
			// Adopted by a releaser; retry.
		case <-timerCh:
			p.mu.Lock()
			adopted := !w.active
			p.removeWaiterLocked(w)
			p.mu.Unlock()
			if adopted {
				// The releaser won the race with the timer; the wake is
				// ours, so retry.
				continue
			}
			p.metrics.AcquireTimeout.Add(1)
			return nil, resterr.New(resterr.KindTimeout, "timed out waiting for a pooled connection")
		case <-ctx.Done():
			p.mu.Lock()
			adopted := !w.active
			p.removeWaiterLocked(w)
			var next *waiter
			if adopted {
				// We are abandoning a wake we were handed; pass it on so
				// the freed capacity does not strand another waiter.
				next = p.popWaiterLocked(ep)
			}
			p.mu.Unlock()
			stopTimer(timer)
			if next != nil {
				next.signal()
			}
			p.metrics.AcquireTimeout.Add(1)
			return nil, resterr.Wrap(resterr.KindTimeout, "acquire cancelled", ctx.Err())
		}
	}
}

// release returns connection id to ep's bucket. Healthy connections go
// to the idle tail; unhealthy ones are dropped. One waiter is then
// woken, local first, and signalled only after the lock is released.
func (p *Pool) release(ep endpoint.Endpoint, id uint64) {
	now := p.clock.Now()
	p.mu.Lock()
	bkt := p.buckets[ep]
	var pc *pooledConn
	if bkt != nil {
		pc = bkt.inUse[id]
	}
	if pc == nil {
		p.mu.Unlock()
		p.metrics.ReleaseInvalidID.Add(1)
		return
	}
	delete(bkt.inUse, id)
	p.totalInUse--
	p.metrics.TotalInUse.Add(-1)

	if p.alive.Load() && pc.conn.IsHealthy() {
		bkt.pushIdle(idleEntry{pc: pc, lastUsed: now})
		p.metrics.TotalIdle.Add(1)
	} else {
		p.totalOpen--
		pc.conn.Close()
		p.metrics.ConnectionDroppedUnhealthy.Add(1)
	}

	w := p.popWaiterLocked(ep)
	p.mu.Unlock()
	if w != nil {
		w.signal()
	}
}

// Shutdown fences the pool. Parked acquirers are woken and observe the
// shutdown; idle connections are closed when CloseOnShutdown is set.
// Connections currently lent out are left alone; their leases become
// inert and do not re-enter the pool.
func (p *Pool) Shutdown() {
	if !p.alive.CompareAndSwap(true, false) {
		return
	}
	p.mu.Lock()
	var waiters []*waiter
	for elem := p.primaryWaiters.Front(); elem != nil; elem = elem.Next() {
		w := elem.Value.(*waiter)
		if w.active {
			w.active = false
			w.secondary.Remove(w.secondaryElem)
			w.secondaryElem = nil
		}
		waiters = append(waiters, w)
	}
	var doomed []*conn.Conn
	if p.config.CloseOnShutdown {
		for _, bkt := range p.buckets {
			for i := range bkt.idle {
				doomed = append(doomed, bkt.idle[i].pc.conn)
			}
			p.totalOpen -= len(bkt.idle)
			p.metrics.TotalIdle.Add(int64(-len(bkt.idle)))
			bkt.idle = nil
		}
	}
	p.mu.Unlock()

	for _, w := range waiters {
		w.signal()
	}
	var group errgroup.Group
	for _, c := range doomed {
		c := c
		group.Go(func() error {
			c.Close()
			return nil
		})
	}
	_ = group.Wait()
	p.logger.Logf(obs.Info, "pool shut down, closed %d idle connections, woke %d waiters",
		len(doomed), len(waiters))
}

// Drain waits for every lent connection to come home, polling the
// in-use count every 100ms. It returns true once the count reaches
// zero, or false when timeout elapses or ctx is cancelled first. A
// nonpositive timeout polls until ctx is done.
func (p *Pool) Drain(ctx context.Context, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = p.clock.Now().Add(timeout)
	}
	ticker := p.clock.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		idle := p.totalInUse == 0
		p.mu.Unlock()
		if idle {
			return true
		}
		if !deadline.IsZero() && !p.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			return false
		}
	}
}

// ReportSuccess informs the circuit breaker that a request on ep
// succeeded, resetting its consecutive failure count.
func (p *Pool) ReportSuccess(ep endpoint.Endpoint) {
	ep = ep.Normalize()
	p.mu.Lock()
	bkt := p.bucketLocked(ep)
	hadFailures := bkt.consecutiveFailures != 0
	bkt.consecutiveFailures = 0
	p.mu.Unlock()
	if hadFailures {
		p.metrics.CircuitBreakerClosed.Add(1)
		p.logger.Logf(obs.Info, "circuit breaker closed for %s", ep)
	}
}

// ReportFailure informs the circuit breaker that a request on ep
// failed. Reaching the configured threshold opens the circuit for the
// breaker timeout, during which acquisitions for ep are rejected.
func (p *Pool) ReportFailure(ep endpoint.Endpoint) {
	ep = ep.Normalize()
	p.mu.Lock()
	bkt := p.bucketLocked(ep)
	bkt.consecutiveFailures++
	opened := bkt.consecutiveFailures == p.config.CircuitBreakerFailureThreshold
	if opened {
		bkt.openUntil = p.clock.Now().Add(p.config.CircuitBreakerTimeout)
	}
	p.mu.Unlock()
	if opened {
		p.metrics.CircuitBreakerOpened.Add(1)
		p.logger.Logf(obs.Warn, "circuit breaker opened for %s", ep)
	}
}

func (p *Pool) bucketLocked(ep endpoint.Endpoint) *bucket {
	bkt := p.buckets[ep]
	if bkt == nil {
		bkt = newBucket(ep)
		p.buckets[ep] = bkt
	}
	return bkt
}

// tryAcquireLocked is the single acquisition path: prune expired idle
// entries, honor the circuit breaker, prefer reusing the oldest idle
// connection, then fall back to creating one within the per-endpoint
// and global caps. Created connections have done no I/O yet.
func (p *Pool) tryAcquireLocked(ep endpoint.Endpoint) *Lease {
	if !p.alive.Load() {
		return nil
	}
	now := p.clock.Now()
	p.pruneIdleLocked(now)

	bkt := p.bucketLocked(ep)
	if now.Before(bkt.openUntil) {
		p.metrics.AcquireCircuitOpen.Add(1)
		return nil
	}

	for {
		entry, ok := bkt.popIdle()
		if !ok {
			break
		}
		p.metrics.TotalIdle.Add(-1)
		pc := entry.pc
		switch {
		case !pc.conn.IsHealthy():
			p.dropLocked(pc, &p.metrics.ConnectionDroppedUnhealthy)
			continue
		case pc.reuseCount >= p.config.MaxConnectionReuseCount:
			p.dropLocked(pc, &p.metrics.ConnectionDroppedReuseLimit)
			continue
		case now.Sub(pc.created) > p.config.MaxConnectionAge:
			p.dropLocked(pc, &p.metrics.ConnectionDroppedAgeLimit)
			continue
		}
		pc.reuseCount++
		p.metrics.ConnectionReused.Add(1)
		return p.lendLocked(bkt, pc, ep)
	}

	if bkt.openCount() >= p.config.MaxConnectionsPerEndpoint {
		return nil
	}
	if p.totalOpen >= p.config.MaxTotalConnections {
		return nil
	}

	pc := &pooledConn{conn: conn.New(ep, p.connOpts), created: now}
	p.totalOpen++
	p.metrics.ConnectionCreated.Add(1)
	return p.lendLocked(bkt, pc, ep)
}

func (p *Pool) lendLocked(bkt *bucket, pc *pooledConn, ep endpoint.Endpoint) *Lease {
	p.nextID++
	id := p.nextID
	bkt.inUse[id] = pc
	p.totalInUse++
	p.metrics.TotalInUse.Add(1)
	return newLease(p, pc, ep, id)
}

// pruneIdleLocked evicts idle entries whose last use is older than the
// idle TTL, across all buckets. Idle queues are ordered by release
// time, so eviction stops at the first fresh entry.
func (p *Pool) pruneIdleLocked(now time.Time) {
	ttl := p.config.ConnectionIdleTTL
	for _, bkt := range p.buckets {
		for len(bkt.idle) > 0 && now.Sub(bkt.idle[0].lastUsed) > ttl {
			entry, _ := bkt.popIdle()
			p.metrics.TotalIdle.Add(-1)
			p.totalOpen--
			p.metrics.ConnectionPruned.Add(1)
			if p.config.CloseOnPrune {
				entry.pc.conn.Close()
			}
		}
	}
}

func (p *Pool) dropLocked(pc *pooledConn, counter *atomic.Int64) {
	p.totalOpen--
	pc.conn.Close()
	counter.Add(1)
}

// popWaiterLocked removes and adopts the next waiter a release into ep
// can satisfy: the oldest local waiter for ep, else the oldest global
// waiter. The caller must signal the returned waiter after releasing
// the lock.
func (p *Pool) popWaiterLocked(ep endpoint.Endpoint) *waiter {
	var elem *list.Element
	if bkt := p.buckets[ep]; bkt != nil && bkt.localWaiters.Len() > 0 {
		elem = bkt.localWaiters.Front()
	} else if p.globalWaiters.Len() > 0 {
		elem = p.globalWaiters.Front()
	}
	if elem == nil {
		return nil
	}
	w := elem.Value.(*waiter)
	w.secondary.Remove(elem)
	w.secondaryElem = nil
	w.active = false
	return w
}

// removeWaiterLocked unlinks w from whichever queues still hold it.
// Safe to call after adoption or shutdown already detached the
// secondary link.
func (p *Pool) removeWaiterLocked(w *waiter) {
	if w.secondaryElem != nil {
		w.secondary.Remove(w.secondaryElem)
		w.secondaryElem = nil
	}
	if w.primaryElem != nil {
		p.primaryWaiters.Remove(w.primaryElem)
		w.primaryElem = nil
		p.metrics.WaitersTotal.Add(-1)
	}
}

func stopTimer(timer internal.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
