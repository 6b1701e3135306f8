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

// Package endpoint provides the normalized origin identity used as the
// connection pool's key, along with URL parsing and resolution against
// a base prefix.
package endpoint

import (
	"strings"

	"golang.org/x/net/idna"
)

// Endpoint identifies one origin: a host, a port, and whether the
// origin speaks TLS. Endpoints are plain value objects; two endpoints
// are the same origin exactly when all three fields are equal, so a
// normalized Endpoint works directly as a map key.
type Endpoint struct {
	Host  string
	Port  string
	HTTPS bool
}

// Normalize returns the canonical form of e: the host is IDNA-mapped
// to lowercase ASCII (defaulting to "localhost" when empty) and the
// port defaults to "443" for HTTPS origins and "80" otherwise.
// Normalize is idempotent. Callers must normalize an Endpoint before
// using it as a pool key.
func (e Endpoint) Normalize() Endpoint {
	if e.Host == "" {
		e.Host = "localhost"
	} else {
		e.Host = asciiHost(e.Host)
	}
	if e.Port == "" {
		if e.HTTPS {
			e.Port = "443"
		} else {
			e.Port = "80"
		}
	}
	return e
}

// HostPort returns the "host:port" form used for dialing.
func (e Endpoint) HostPort() string {
	return e.Host + ":" + e.Port
}

// Scheme returns "https" or "http".
func (e Endpoint) Scheme() string {
	if e.HTTPS {
		return "https"
	}
	return "http"
}

func (e Endpoint) String() string {
	return e.Scheme() + "://" + e.HostPort()
}

// asciiHost maps a hostname to its lowercase ASCII (punycode) form.
// Hosts that the IDNA lookup profile rejects (IP literals with zones,
// underscored names) are lowercased as-is instead.
func asciiHost(host string) string {
	mapped, err := idna.Lookup.ToASCII(host)
	if err != nil || mapped == "" {
		return strings.ToLower(host)
	}
	return mapped
}
