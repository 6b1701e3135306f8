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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredlabs/restpool/endpoint"
)

func TestValidateMethod(t *testing.T) {
	t.Parallel()
	for _, method := range []string{"GET", "HEAD", "DELETE", "OPTIONS", "POST", "PUT", "PATCH"} {
		assert.NoError(t, validateMethod(method), method)
	}
	for _, method := range []string{"get", "BREW", "TRACE", "CONNECT", ""} {
		assert.Error(t, validateMethod(method), method)
	}
}

func TestHostHeaderValue(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com",
		hostHeaderValue(endpoint.Endpoint{Host: "example.com", Port: "80"}))
	assert.Equal(t, "example.com",
		hostHeaderValue(endpoint.Endpoint{Host: "example.com", Port: "443", HTTPS: true}))
	assert.Equal(t, "example.com:8080",
		hostHeaderValue(endpoint.Endpoint{Host: "example.com", Port: "8080"}))
	assert.Equal(t, "example.com:80",
		hostHeaderValue(endpoint.Endpoint{Host: "example.com", Port: "80", HTTPS: true}))
}

func TestPrepareHeaderOrder(t *testing.T) {
	t.Parallel()
	resolved, err := endpoint.ParseURL("http://example.com:8080/v1/items?page=2")
	require.NoError(t, err)

	req := &Request{
		Method:  "POST",
		Body:    "data",
		HasBody: true,
		Headers: map[string]string{
			"X-Request": "yes",
			"Accept":    "application/json",
		},
	}
	preq := prepare(req, resolved, "agent/1", map[string]string{
		"X-Default": "yes",
		"Accept":    "text/plain",
	})

	assert.Equal(t, "POST", preq.Method)
	assert.Equal(t, "/v1/items?page=2", preq.Target)
	assert.Equal(t, "data", preq.Body)
	assert.True(t, preq.HasBody)

	names := make([]string, 0, len(preq.Headers))
	for _, h := range preq.Headers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{
		"Host", "User-Agent", "Connection", "Content-Length",
		"Accept", "X-Default", "X-Request",
	}, names)
	assert.Equal(t, "example.com:8080", preq.HeaderValue("Host"))
	assert.Equal(t, "agent/1", preq.HeaderValue("User-Agent"))
	assert.Equal(t, "keep-alive", preq.HeaderValue("Connection"))
	assert.Equal(t, "4", preq.HeaderValue("Content-Length"))
	assert.Equal(t, "application/json", preq.HeaderValue("Accept"),
		"request headers overwrite defaults in place")
}

func TestPrepareUserOverridesFrameworkHeader(t *testing.T) {
	t.Parallel()
	resolved, err := endpoint.ParseURL("http://example.com/")
	require.NoError(t, err)

	req := &Request{Method: "GET", Headers: map[string]string{"user-agent": "custom/2"}}
	preq := prepare(req, resolved, "agent/1", nil)

	assert.Equal(t, "custom/2", preq.HeaderValue("User-Agent"))
	assert.Equal(t, "User-Agent", preq.Headers[1].Name, "the first spelling and position are kept")
}

func TestPrepareNoBody(t *testing.T) {
	t.Parallel()
	resolved, err := endpoint.ParseURL("http://example.com/")
	require.NoError(t, err)

	preq := prepare(&Request{Method: "GET"}, resolved, "agent/1", nil)
	assert.Equal(t, "", preq.HeaderValue("Content-Length"))
	assert.False(t, preq.HasBody)
}

func TestRequestCloneIsolatesHeaders(t *testing.T) {
	t.Parallel()
	original := Request{Method: "GET", URL: "/x"}
	original.SetHeader("A", "1")

	copied := original.clone()
	copied.SetHeader("A", "2")
	copied.SetHeader("B", "3")

	assert.Equal(t, "1", original.Headers["A"])
	assert.NotContains(t, original.Headers, "B")
}
