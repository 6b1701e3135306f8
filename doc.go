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

// Package restpool provides an HTTP/1.1 client built around an
// asynchronous per-endpoint connection pool. It is aimed at
// server-to-server REST traffic where connection reuse, bounded
// concurrency per origin, and explicit failure classification matter
// more than the breadth of net/http.
//
// To create a client use the [NewClient] function. Requests resolve
// against an optional base URL, pass through configured
// [RequestInterceptor] hooks, and are then performed on a connection
// borrowed from the pool. Responses are fully buffered, bounded by a
// configurable body size limit.
//
// # Pooling Behavior
//
// The pool keys connections by normalized origin (host, port, scheme).
// Each origin owns up to a configured number of connections, with a
// global cap across origins. When both an origin and the pool have
// spare capacity, a request gets a fresh or reused connection
// immediately; otherwise it parks in a FIFO queue and is woken by the
// next release that can satisfy it. Releases into an origin wake that
// origin's oldest waiter first, then the oldest waiter parked on the
// global cap, so traffic to a congested origin cannot starve others.
//
// Idle connections are reaped on three conditions: an idle TTL, a
// total age cap, and a reuse-count cap. A per-origin circuit breaker
// rejects acquisitions for a cooldown period after repeated failures;
// the breaker is driven by the caller through [Pool.ReportSuccess] and
// [Pool.ReportFailure], never automatically.
//
// Every failure crossing the public API is a [resterr.Error] carrying
// a machine-checkable kind, so callers can distinguish a dial failure
// from a TLS failure from an over-limit body without string matching.
//
// # Synchronous Usage
//
// [BlockingClient] is the pool-free variant: one connection, reused
// across sequential calls to the same origin, re-dialed when the
// target origin changes. It suits single-threaded tools and tests; the
// intended pattern is one instance per goroutine.
//
// [resterr.Error]: https://pkg.go.dev/github.com/kindredlabs/restpool/resterr#Error
package restpool
