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

// Package conn implements a single client connection to one origin: it
// dials TCP, optionally wraps the stream in TLS with SNI, and performs
// one HTTP/1.1 request/response transaction at a time. Connections are
// bound to their endpoint at construction and never switch origins.
package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kindredlabs/restpool/endpoint"
	"github.com/kindredlabs/restpool/resterr"
)

// DefaultMaxBodyBytes bounds response bodies when Options does not
// override it.
const DefaultMaxBodyBytes int64 = 10 << 20

// Options configures a Conn. The zero value is usable: it dials with a
// default net.Dialer, resolves with the system resolver, verifies TLS
// against the system roots, and applies DefaultMaxBodyBytes.
type Options struct {
	// DialFunc opens the TCP stream. Defaults to a net.Dialer whose
	// Timeout is ConnectTimeout.
	DialFunc func(ctx context.Context, network, address string) (net.Conn, error)
	// ResolveFunc resolves a hostname to candidate addresses. Defaults
	// to net.DefaultResolver.LookupHost.
	ResolveFunc func(ctx context.Context, host string) ([]string, error)
	// TLSClientConfig is cloned before use; ServerName is always
	// overwritten with the endpoint host.
	TLSClientConfig *tls.Config
	// SkipVerifyTLS disables peer certificate verification.
	SkipVerifyTLS bool
	// ConnectTimeout bounds the dial and TLS handshake together when
	// the caller's context carries no earlier deadline. Zero means no
	// limit beyond the context.
	ConnectTimeout time.Duration
	// RequestTimeout bounds one write+read transaction the same way.
	RequestTimeout time.Duration
	// MaxBodyBytes bounds the response body. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Conn is one client connection. It is not safe for concurrent use;
// the pool guarantees exclusive access through leases.
type Conn struct {
	ep   endpoint.Endpoint
	opts Options

	// raw is the TCP stream; stream is what requests are written to
	// and read from (raw itself, or a *tls.Conn layered over it).
	// Both are nil while unconnected.
	raw    net.Conn
	stream net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
}

// New returns an unconnected Conn bound to ep. No I/O happens until
// EnsureConnected or Request.
func New(ep endpoint.Endpoint, opts Options) *Conn {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Conn{ep: ep.Normalize(), opts: opts}
}

// Endpoint returns the origin this connection is bound to.
func (c *Conn) Endpoint() endpoint.Endpoint {
	return c.ep
}

// Connected reports whether a transport stream is currently open. It
// does not probe the socket; use IsHealthy for that.
func (c *Conn) Connected() bool {
	return c.stream != nil
}

// EnsureConnected establishes the transport stream if one is not
// already open. It resolves the host, dials the first address that
// accepts, and for HTTPS endpoints performs a TLS handshake with SNI
// set to the host. Idempotent: an open stream returns immediately.
func (c *Conn) EnsureConnected(ctx context.Context) error {
	if c.stream != nil {
		return nil
	}
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	addrs, err := c.resolve(ctx)
	if err != nil {
		return resterr.Wrap(resterr.KindConnectionFailed, "resolving "+c.ep.Host, err)
	}

	raw, err := c.dial(ctx, addrs)
	if err != nil {
		return resterr.Wrap(resterr.KindConnectionFailed, "connecting to "+c.ep.HostPort(), err)
	}

	stream := raw
	if c.ep.HTTPS {
		tlsConfig := c.opts.TLSClientConfig.Clone()
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		tlsConfig.ServerName = c.ep.Host
		tlsConfig.InsecureSkipVerify = c.opts.SkipVerifyTLS
		tlsConn := tls.Client(raw, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return resterr.Wrap(resterr.KindTLSHandshakeFailed, "TLS handshake with "+c.ep.Host, err)
		}
		stream = tlsConn
	}

	c.raw = raw
	c.stream = stream
	c.br = bufio.NewReader(stream)
	c.bw = bufio.NewWriter(stream)
	return nil
}

func (c *Conn) resolve(ctx context.Context) ([]string, error) {
	if ip := net.ParseIP(strings.Trim(c.ep.Host, "[]")); ip != nil {
		return []string{c.ep.Host}, nil
	}
	resolveFunc := c.opts.ResolveFunc
	if resolveFunc == nil {
		resolveFunc = net.DefaultResolver.LookupHost
	}
	addrs, err := resolveFunc(ctx, c.ep.Host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errors.New("no addresses resolved")
	}
	return addrs, nil
}

func (c *Conn) dial(ctx context.Context, addrs []string) (net.Conn, error) {
	dialFunc := c.opts.DialFunc
	if dialFunc == nil {
		dialer := &net.Dialer{Timeout: c.opts.ConnectTimeout}
		dialFunc = dialer.DialContext
	}
	var lastErr error
	for _, addr := range addrs {
		raw, err := dialFunc(ctx, "tcp", net.JoinHostPort(addr, c.ep.Port))
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Request performs exactly one HTTP/1.1 transaction. The prepared
// request must target this connection's endpoint. Any I/O failure
// tears down the stream; the pool discards the connection on release.
// A single Request never dials twice: if the initial connect fails the
// error is returned without retry.
func (c *Conn) Request(ctx context.Context, preq *PreparedRequest) (*Response, error) {
	if preq.Endpoint.Normalize() != c.ep {
		return nil, resterr.New(resterr.KindInvalidURL,
			"request for "+preq.Endpoint.String()+" routed to connection for "+c.ep.String())
	}

	if c.stream == nil {
		if err := c.EnsureConnected(ctx); err != nil {
			return nil, resterr.Wrap(resterr.KindNetworkError, "establishing connection", err)
		}
	}

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.stream.SetDeadline(deadline)
		defer func() {
			if c.stream != nil {
				c.stream.SetDeadline(time.Time{})
			}
		}()
	}

	if err := writeRequest(c.bw, preq); err != nil {
		c.Close()
		return nil, resterr.Wrap(resterr.KindSendFailed, "writing request", timeoutOr(ctx, err))
	}

	response, keepAlive, err := readResponse(c.br, c.opts.MaxBodyBytes, preq.Method == "HEAD")
	if err != nil {
		c.Close()
		return nil, resterr.Wrap(resterr.KindReceiveFailed, "reading response", timeoutOr(ctx, err))
	}
	if !keepAlive {
		c.Close()
	}
	return response, nil
}

// timeoutOr substitutes the context's error when the I/O failure was
// the stream deadline firing, so callers see the cancellation rather
// than an opaque poll timeout.
func timeoutOr(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err)) {
		return ctx.Err()
	}
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Close tears down the transport stream and returns the connection to
// the unconnected state. The raw TCP socket is closed directly; for
// TLS streams no close-notify alert is sent, so Close never blocks on
// the peer. Safe to call at any time, including when unconnected.
func (c *Conn) Close() error {
	if c.raw == nil {
		return nil
	}
	err := c.raw.Close()
	c.raw = nil
	c.stream = nil
	c.br = nil
	c.bw = nil
	return err
}

// IsHealthy reports whether the stream is open and the peer has not
// closed its side. It peeks with an already-expired read deadline: a
// timeout means the socket is quiet and usable, while EOF or buffered
// data means the connection cannot serve another request.
func (c *Conn) IsHealthy() bool {
	if c.stream == nil {
		return false
	}
	if c.br.Buffered() > 0 {
		return false
	}
	if err := c.stream.SetReadDeadline(time.Now()); err != nil {
		return false
	}
	_, err := c.br.Peek(1)
	c.stream.SetReadDeadline(time.Time{})
	if err == nil {
		// Unsolicited bytes between transactions.
		return false
	}
	return isTimeout(err)
}
