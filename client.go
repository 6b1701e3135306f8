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
	"crypto/tls"
	"net"
	"time"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
	"github.com/kindredlabs/restpool/internal"
	"github.com/kindredlabs/restpool/internal/obs"
	"github.com/kindredlabs/restpool/resterr"
)

// Client configuration defaults.
const (
	DefaultUserAgent      = "restpool-client/1.0"
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// ClientOption is an option used to customize the behavior of a client.
// Options apply to both Client and BlockingClient; pool options are
// ignored by the blocking variant.
type ClientOption interface {
	apply(*clientOptions)
}

// WithBaseURL sets the base against which relative request URLs are
// resolved. The base must be absolute and carry no query string; its
// path is normalized into a prefix with no trailing slash.
func WithBaseURL(baseURL string) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.baseURL = baseURL
	})
}

// WithUserAgent overrides the User-Agent header sent with every
// request. Defaults to DefaultUserAgent.
func WithUserAgent(userAgent string) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.userAgent = userAgent
	})
}

// WithDefaultHeaders sets headers applied to every request. A request
// header with a case-insensitively matching key overwrites the default.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.defaultHeaders = headers
	})
}

// WithConnectTimeout bounds DNS resolution, TCP connect, and TLS
// handshake together. Defaults to DefaultConnectTimeout.
func WithConnectTimeout(duration time.Duration) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.connectTimeout = duration
	})
}

// WithRequestTimeout bounds one request/response transaction on the
// wire. Defaults to DefaultRequestTimeout.
func WithRequestTimeout(duration time.Duration) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.requestTimeout = duration
	})
}

// WithMaxBodyBytes bounds the size of buffered response bodies.
// Responses exceeding the limit fail with KindReceiveFailed.
func WithMaxBodyBytes(limit int64) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.maxBodyBytes = limit
	})
}

// WithVerifyTLS controls peer certificate verification against the
// system roots. Defaults to true.
func WithVerifyTLS(verify bool) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.skipVerifyTLS = !verify
	})
}

// WithTLSConfig supplies a TLS configuration used as the template for
// every TLS connection. It is cloned per connection and the ServerName
// is always overwritten with the request host.
func WithTLSConfig(config *tls.Config) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.tlsConfig = config
	})
}

// WithDialer provides a custom function for dialing TCP streams.
func WithDialer(dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.dialFunc = dialFunc
	})
}

// WithResolver provides a custom function for resolving hostnames to
// candidate addresses.
func WithResolver(resolveFunc func(ctx context.Context, host string) ([]string, error)) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.resolveFunc = resolveFunc
	})
}

// WithInterceptors appends request interceptors, invoked in order on a
// copy of each request before it is prepared for the wire.
func WithInterceptors(interceptors ...RequestInterceptor) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.interceptors = append(opts.interceptors, interceptors...)
	})
}

// WithPoolConfig replaces the connection pool configuration.
func WithPoolConfig(config PoolConfig) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.poolConfig = &config
	})
}

// WithLogger directs the client's and pool's diagnostics to logger.
// The default discards everything.
func WithLogger(logger obs.Logger) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.logger = logger
	})
}

// WithClock substitutes the time source used by the pool. Intended for
// tests with a fake clock.
func WithClock(clock internal.Clock) ClientOption {
	return clientOptionFunc(func(opts *clientOptions) {
		opts.clock = clock
	})
}

type clientOptionFunc func(*clientOptions)

func (f clientOptionFunc) apply(opts *clientOptions) {
	f(opts)
}

type clientOptions struct {
	baseURL        string
	userAgent      string
	defaultHeaders map[string]string
	connectTimeout time.Duration
	requestTimeout time.Duration
	maxBodyBytes   int64
	skipVerifyTLS  bool
	tlsConfig      *tls.Config
	dialFunc       func(ctx context.Context, network, addr string) (net.Conn, error)
	resolveFunc    func(ctx context.Context, host string) ([]string, error)
	interceptors   []RequestInterceptor
	poolConfig     *PoolConfig
	logger         obs.Logger
	clock          internal.Clock
}

func (opts *clientOptions) applyDefaults() {
	if opts.userAgent == "" {
		opts.userAgent = DefaultUserAgent
	}
	if opts.connectTimeout == 0 {
		opts.connectTimeout = DefaultConnectTimeout
	}
	if opts.requestTimeout == 0 {
		opts.requestTimeout = DefaultRequestTimeout
	}
	if opts.maxBodyBytes == 0 {
		opts.maxBodyBytes = conn.DefaultMaxBodyBytes
	}
	if opts.poolConfig == nil {
		config := NewPoolConfig()
		opts.poolConfig = &config
	}
	if opts.logger == nil {
		opts.logger = obs.NopLogger{}
	}
	if opts.clock == nil {
		opts.clock = internal.NewRealClock()
	}
}

func (opts *clientOptions) connOptions() conn.Options {
	return conn.Options{
		DialFunc:        opts.dialFunc,
		ResolveFunc:     opts.resolveFunc,
		TLSClientConfig: opts.tlsConfig,
		SkipVerifyTLS:   opts.skipVerifyTLS,
		ConnectTimeout:  opts.connectTimeout,
		RequestTimeout:  opts.requestTimeout,
		MaxBodyBytes:    opts.maxBodyBytes,
	}
}

func (opts *clientOptions) parseBase() (*endpoint.URL, error) {
	if opts.baseURL == "" {
		return nil, nil
	}
	base, err := endpoint.ParseBaseURL(opts.baseURL)
	if err != nil {
		return nil, err
	}
	return &base, nil
}

// Client issues HTTP requests through a shared per-endpoint connection
// pool. It is safe for concurrent use; requests to a full endpoint
// queue FIFO until a connection is released. Callers should Shutdown
// (or Close) the client when done with it.
type Client struct {
	opts clientOptions
	base *endpoint.URL
	pool *Pool
}

// NewClient creates a Client. It fails only when a configured base URL
// does not parse.
func NewClient(options ...ClientOption) (*Client, error) {
	var opts clientOptions
	for _, opt := range options {
		opt.apply(&opts)
	}
	opts.applyDefaults()
	base, err := opts.parseBase()
	if err != nil {
		return nil, err
	}
	pool := newPool(*opts.poolConfig, opts.connOptions(), opts.clock, opts.logger)
	return &Client{opts: opts, base: base, pool: pool}, nil
}

// Pool exposes the client's connection pool, chiefly so callers can
// drive the circuit breaker via ReportSuccess and ReportFailure.
func (c *Client) Pool() *Pool {
	return c.pool
}

// Metrics returns the pool's counters and gauges.
func (c *Client) Metrics() *Metrics {
	return c.pool.Metrics()
}

// Send resolves, intercepts, prepares, and performs one request. The
// method must be one of GET, HEAD, DELETE, OPTIONS, POST, PUT, PATCH;
// anything else fails before any socket work. Acquisition waits
// indefinitely, bounded only by ctx.
func (c *Client) Send(ctx context.Context, req Request) (*conn.Response, error) {
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	working := req.clone()
	resolved, err := endpoint.Resolve(working.URL, c.base)
	if err != nil {
		return nil, err
	}
	if len(c.opts.interceptors) > 0 {
		for _, interceptor := range c.opts.interceptors {
			interceptor.Prepare(&working, resolved)
		}
		// Interceptors may rewrite the URL (query-string credentials),
		// so resolve again before preparing.
		resolved, err = endpoint.Resolve(working.URL, c.base)
		if err != nil {
			return nil, err
		}
	}
	preq := prepare(&working, resolved, c.opts.userAgent, c.opts.defaultHeaders)

	lease, err := c.pool.Acquire(ctx, preq.Endpoint, 0)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	cn := lease.Conn()
	if cn == nil {
		return nil, resterr.New(resterr.KindUnknown, "pool is shut down")
	}
	return cn.Request(ctx, preq)
}

// Get issues a GET to url, which may be absolute or relative to the
// configured base.
func (c *Client) Get(ctx context.Context, url string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "GET", URL: url})
}

// Head issues a HEAD to url.
func (c *Client) Head(ctx context.Context, url string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "HEAD", URL: url})
}

// Delete issues a DELETE to url.
func (c *Client) Delete(ctx context.Context, url string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "DELETE", URL: url})
}

// Options issues an OPTIONS to url.
func (c *Client) Options(ctx context.Context, url string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "OPTIONS", URL: url})
}

// Post issues a POST with the given body.
func (c *Client) Post(ctx context.Context, url, body string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "POST", URL: url, Body: body, HasBody: true})
}

// Put issues a PUT with the given body.
func (c *Client) Put(ctx context.Context, url, body string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "PUT", URL: url, Body: body, HasBody: true})
}

// Patch issues a PATCH with the given body.
func (c *Client) Patch(ctx context.Context, url, body string) (*conn.Response, error) {
	return c.Send(ctx, Request{Method: "PATCH", URL: url, Body: body, HasBody: true})
}

// Shutdown fences the pool: parked acquirers fail, idle connections
// close, and in-flight requests finish against their live sockets.
func (c *Client) Shutdown() {
	c.pool.Shutdown()
}

// Drain waits until every pooled connection has been returned, up to
// timeout. Usually called after Shutdown.
func (c *Client) Drain(ctx context.Context, timeout time.Duration) bool {
	return c.pool.Drain(ctx, timeout)
}

// Close shuts the client down. It implements io.Closer so a Client can
// sit behind that interface; the error is always nil.
func (c *Client) Close() error {
	c.pool.Shutdown()
	return nil
}
