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

// Package clocktest backs the pool tests with a clock that only moves
// when told to. Idle TTL expiry, connection age caps, circuit breaker
// windows, waiter timeouts, and drain polling all run on
// internal.Clock, so a test can let the code under test arm its
// timers, advance the fake past the boundary under test, and assert
// on the outcome without sleeping. The fake is clockwork's; nothing
// outside this package imports clockwork.
package clocktest

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kindredlabs/restpool/internal"
)

// Fake is a manually driven internal.Clock. Advance moves time
// forward and fires whatever comes due; BlockUntilContext parks the
// test until the expected number of timers has been registered, which
// is how the acquire-timeout tests avoid racing the waiter's timer
// setup.
type Fake struct {
	*clockwork.FakeClock
}

var _ internal.Clock = (*Fake)(nil)

// NewFakeClock returns a Fake frozen at clockwork's starting instant.
func NewFakeClock() *Fake {
	return &Fake{clockwork.NewFakeClock()}
}

// NewTicker re-boxes the clockwork ticker as an internal.Ticker.
// Nested interface types are compared nominally in Go, so even though
// the two Ticker method sets are identical, the embedded FakeClock's
// NewTicker signature does not satisfy internal.Clock without this
// shim.
func (f *Fake) NewTicker(d time.Duration) internal.Ticker {
	return f.FakeClock.NewTicker(d)
}

// NewTimer re-boxes the clockwork timer the same way NewTicker does.
// A zero-duration timer is additionally stopped and drained so it
// matches the real clock's Go 1.23 timer semantics, which clockwork
// has not adopted (https://github.com/jonboulle/clockwork/issues/98).
func (f *Fake) NewTimer(d time.Duration) internal.Timer {
	timer := f.FakeClock.NewTimer(d)
	if d == 0 {
		if !timer.Stop() {
			<-timer.Chan()
		}
	}
	return timer
}
