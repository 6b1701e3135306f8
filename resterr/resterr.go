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

// Package resterr defines the error taxonomy shared by all layers of
// the restpool module. Every failure that crosses the public API is an
// *Error carrying one of the Kind values below, a human-readable
// message, and (when one exists) the underlying cause.
package resterr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The zero value is KindUnknown.
type Kind int

const (
	// KindUnknown is the generic fallback: unrecognized HTTP verbs,
	// pool shutdown, and anything else without a better home.
	KindUnknown Kind = iota
	// KindInvalidURL reports a malformed URL, a relative URL without a
	// base, or a request routed to a connection for another endpoint.
	KindInvalidURL
	// KindConnectionFailed reports a DNS or TCP connect failure.
	KindConnectionFailed
	// KindTLSHandshakeFailed reports an SNI or TLS handshake failure.
	KindTLSHandshakeFailed
	// KindTimeout reports an acquire or request deadline expiring.
	KindTimeout
	// KindSendFailed reports a write error on the wire.
	KindSendFailed
	// KindReceiveFailed reports a read error or an over-limit body.
	KindReceiveFailed
	// KindNetworkError reports a generic network failure during a
	// pool-routed request.
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "InvalidUrl"
	case KindConnectionFailed:
		return "ConnectionFailed"
	case KindTLSHandshakeFailed:
		return "TlsHandshakeFailed"
	case KindTimeout:
		return "Timeout"
	case KindSendFailed:
		return "SendFailed"
	case KindReceiveFailed:
		return "ReceiveFailed"
	case KindNetworkError:
		return "NetworkError"
	case KindUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the tagged error value returned across the module's API.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind and, when
// target's Message is non-empty, the same Message, so that
// errors.Is(err, &Error{Kind: KindTimeout}) matches any timeout.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && (other.Message == "" || other.Message == e.Message)
}

// New returns an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error with the given kind and message wrapping cause.
// A nil cause is equivalent to New.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not an
// *Error (including nil).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
