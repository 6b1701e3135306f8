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
	"context"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
)

// BlockingClient is the synchronous façade: one connection, no pool,
// no queueing. It keeps a single connection to the most recently used
// endpoint and reconnects when a request targets a different one.
// BlockingClient is not safe for concurrent use; the intended pattern
// is one instance per goroutine.
type BlockingClient struct {
	opts clientOptions
	base *endpoint.URL
	conn *conn.Conn
}

// NewBlockingClient creates a BlockingClient. Pool-related options are
// accepted and ignored. It fails only when a configured base URL does
// not parse.
func NewBlockingClient(options ...ClientOption) (*BlockingClient, error) {
	var opts clientOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	opts.applyDefaults()
	base, err := opts.parseBase()
	if err != nil {
		return nil, err
	}
	return &BlockingClient{opts: opts, base: base}, nil
}

// Send performs one request, blocking until the response is fully
// buffered. The connection is kept alive across calls to the same
// endpoint; a request for a different endpoint closes it and dials the
// new origin.
func (b *BlockingClient) Send(req Request) (*conn.Response, error) {
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	working := req.clone()
	resolved, err := endpoint.Resolve(working.URL, b.base)
	if err != nil {
		return nil, err
	}
	if len(b.opts.interceptors) > 0 {
		for _, interceptor := range b.opts.interceptors {
			interceptor.Prepare(&working, resolved)
		}
		resolved, err = endpoint.Resolve(working.URL, b.base)
		if err != nil {
			return nil, err
		}
	}
	preq := prepare(&working, resolved, b.opts.userAgent, b.opts.defaultHeaders)

	if b.conn == nil || b.conn.Endpoint() != preq.Endpoint {
		if b.conn != nil {
			b.conn.Close()
		}
		b.conn = conn.New(preq.Endpoint, b.opts.connOptions())
	}
	return b.conn.Request(context.Background(), preq)
}

// Get issues a GET to url, absolute or relative to the base.
func (b *BlockingClient) Get(url string) (*conn.Response, error) {
	return b.Send(Request{Method: "GET", URL: url})
}

// Head issues a HEAD to url.
func (b *BlockingClient) Head(url string) (*conn.Response, error) {
	return b.Send(Request{Method: "HEAD", URL: url})
}

// Delete issues a DELETE to url.
func (b *BlockingClient) Delete(url string) (*conn.Response, error) {
	return b.Send(Request{Method: "DELETE", URL: url})
}

// Options issues an OPTIONS to url.
func (b *BlockingClient) Options(url string) (*conn.Response, error) {
	return b.Send(Request{Method: "OPTIONS", URL: url})
}

// Post issues a POST with the given body.
func (b *BlockingClient) Post(url, body string) (*conn.Response, error) {
	return b.Send(Request{Method: "POST", URL: url, Body: body, HasBody: true})
}

// Put issues a PUT with the given body.
func (b *BlockingClient) Put(url, body string) (*conn.Response, error) {
	return b.Send(Request{Method: "PUT", URL: url, Body: body, HasBody: true})
}

// Patch issues a PATCH with the given body.
func (b *BlockingClient) Patch(url, body string) (*conn.Response, error) {
	return b.Send(Request{Method: "PATCH", URL: url, Body: body, HasBody: true})
}

// Close tears down the kept connection, if any.
func (b *BlockingClient) Close() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
