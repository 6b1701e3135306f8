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
	"sync/atomic"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
)

// Lease is an exclusive borrow of one pool-owned connection. The
// holder must call Release exactly once when done; Release is
// idempotent, so a duplicate call is harmless. After the pool shuts
// down a Lease becomes inert: Conn returns nil and Release does not
// call back into the pool (the pool already disposed of the
// connection).
type Lease struct {
	pool *Pool
	conn *conn.Conn
	ep   endpoint.Endpoint
	id   uint64
	held atomic.Bool
}

func newLease(pool *Pool, pc *pooledConn, ep endpoint.Endpoint, id uint64) *Lease {
	lease := &Lease{pool: pool, conn: pc.conn, ep: ep, id: id}
	lease.held.Store(true)
	return lease
}

// Conn returns the borrowed connection, or nil if the lease was
// already released or the pool has shut down.
func (l *Lease) Conn() *conn.Conn {
	if !l.held.Load() || !l.pool.alive.Load() {
		return nil
	}
	return l.conn
}

// Endpoint returns the origin the borrowed connection is bound to.
func (l *Lease) Endpoint() endpoint.Endpoint {
	return l.ep
}

// Release returns the connection to the pool. Only the first call has
// any effect. If the pool is no longer alive the connection is not
// returned; shutdown already closed it or will let it fall away with
// the lease.
func (l *Lease) Release() {
	if !l.held.CompareAndSwap(true, false) {
		return
	}
	if !l.pool.alive.Load() {
		return
	}
	l.pool.release(l.ep, l.id)
}
