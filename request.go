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
	"sort"
	"strconv"

	"github.com/kindredlabs/restpool/conn"
	"github.com/kindredlabs/restpool/endpoint"
	"github.com/kindredlabs/restpool/resterr"
)

// Request describes one HTTP call before preparation. URL may be an
// absolute http(s) URL or a path resolved against the client's base.
// Header keys are case-preserving; on the wire, user headers overwrite
// framework defaults whose keys match case-insensitively. Interceptors
// receive a copy of the Request and may mutate it freely.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	HasBody bool
}

// SetHeader sets a header on the request, allocating the map on first
// use.
func (r *Request) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

// clone copies the request deeply enough that interceptors can mutate
// the copy without touching the caller's value.
func (r Request) clone() Request {
	if r.Headers != nil {
		headers := make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			headers[k] = v
		}
		r.Headers = headers
	}
	return r
}

var methodHasBody = map[string]bool{
	"GET":     false,
	"HEAD":    false,
	"DELETE":  false,
	"OPTIONS": false,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
}

func validateMethod(method string) error {
	if _, ok := methodHasBody[method]; !ok {
		return resterr.New(resterr.KindUnknown, "Unknown HTTP method")
	}
	return nil
}

// hostHeaderValue renders the Host header: the bare host when the port
// is the scheme default, host:port otherwise.
func hostHeaderValue(ep endpoint.Endpoint) string {
	if (ep.HTTPS && ep.Port == "443") || (!ep.HTTPS && ep.Port == "80") {
		return ep.Host
	}
	return ep.HostPort()
}

// prepare turns a resolved request into its wire form. Framework
// headers come first (Host, User-Agent, Connection, Content-Length),
// then configured default headers, then the request's own headers;
// later entries overwrite earlier ones case-insensitively, keeping the
// original position. Map-sourced headers are emitted in sorted key
// order so the wire output is deterministic.
func prepare(req *Request, resolved endpoint.URL, userAgent string, defaultHeaders map[string]string) *conn.PreparedRequest {
	ep := resolved.Endpoint()
	preq := &conn.PreparedRequest{
		Endpoint: ep,
		Method:   req.Method,
		Target:   resolved.Target,
		Body:     req.Body,
		HasBody:  req.HasBody,
	}
	preq.SetHeader("Host", hostHeaderValue(ep))
	preq.SetHeader("User-Agent", userAgent)
	preq.SetHeader("Connection", "keep-alive")
	if req.HasBody {
		preq.SetHeader("Content-Length", strconv.Itoa(len(req.Body)))
	}
	for _, name := range sortedKeys(defaultHeaders) {
		preq.SetHeader(name, defaultHeaders[name])
	}
	for _, name := range sortedKeys(req.Headers) {
		preq.SetHeader(name, req.Headers[name])
	}
	return preq
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
