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

import "sync/atomic"

// Metrics is the pool's observability contract. All counters are
// monotonic; the gauges track live pool state. Counters are plain
// atomics so they can be incremented outside the pool's critical
// section.
type Metrics struct {
	AcquireSuccess       atomic.Int64
	AcquireTimeout       atomic.Int64
	AcquireShutdown      atomic.Int64
	AcquireInternalError atomic.Int64
	AcquireCircuitOpen   atomic.Int64

	ConnectionCreated           atomic.Int64
	ConnectionReused            atomic.Int64
	ConnectionPruned            atomic.Int64
	ConnectionDroppedUnhealthy  atomic.Int64
	ConnectionDroppedReuseLimit atomic.Int64
	ConnectionDroppedAgeLimit   atomic.Int64

	ReleaseInvalidID atomic.Int64

	CircuitBreakerOpened atomic.Int64
	CircuitBreakerClosed atomic.Int64

	TotalInUse   atomic.Int64
	TotalIdle    atomic.Int64
	WaitersTotal atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of all counters and gauges.
type MetricsSnapshot struct {
	AcquireSuccess       int64
	AcquireTimeout       int64
	AcquireShutdown      int64
	AcquireInternalError int64
	AcquireCircuitOpen   int64

	ConnectionCreated           int64
	ConnectionReused            int64
	ConnectionPruned            int64
	ConnectionDroppedUnhealthy  int64
	ConnectionDroppedReuseLimit int64
	ConnectionDroppedAgeLimit   int64

	ReleaseInvalidID int64

	CircuitBreakerOpened int64
	CircuitBreakerClosed int64

	TotalInUse   int64
	TotalIdle    int64
	WaitersTotal int64
}

// Snapshot reads every metric once. The reads are individually atomic
// but not mutually consistent; a concurrent release may be visible in
// one field and not another.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		AcquireSuccess:       m.AcquireSuccess.Load(),
		AcquireTimeout:       m.AcquireTimeout.Load(),
		AcquireShutdown:      m.AcquireShutdown.Load(),
		AcquireInternalError: m.AcquireInternalError.Load(),
		AcquireCircuitOpen:   m.AcquireCircuitOpen.Load(),

		ConnectionCreated:           m.ConnectionCreated.Load(),
		ConnectionReused:            m.ConnectionReused.Load(),
		ConnectionPruned:            m.ConnectionPruned.Load(),
		ConnectionDroppedUnhealthy:  m.ConnectionDroppedUnhealthy.Load(),
		ConnectionDroppedReuseLimit: m.ConnectionDroppedReuseLimit.Load(),
		ConnectionDroppedAgeLimit:   m.ConnectionDroppedAgeLimit.Load(),

		ReleaseInvalidID: m.ReleaseInvalidID.Load(),

		CircuitBreakerOpened: m.CircuitBreakerOpened.Load(),
		CircuitBreakerClosed: m.CircuitBreakerClosed.Load(),

		TotalInUse:   m.TotalInUse.Load(),
		TotalIdle:    m.TotalIdle.Load(),
		WaitersTotal: m.WaitersTotal.Load(),
	}
}
