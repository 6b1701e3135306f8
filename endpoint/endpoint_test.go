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

package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    Endpoint
		expected Endpoint
	}{
		{
			name:     "empty host defaults to localhost",
			input:    Endpoint{},
			expected: Endpoint{Host: "localhost", Port: "80"},
		},
		{
			name:     "https default port",
			input:    Endpoint{Host: "Example.COM", HTTPS: true},
			expected: Endpoint{Host: "example.com", Port: "443", HTTPS: true},
		},
		{
			name:     "explicit port kept",
			input:    Endpoint{Host: "example.com", Port: "8080"},
			expected: Endpoint{Host: "example.com", Port: "8080"},
		},
		{
			name:     "unicode host mapped to punycode",
			input:    Endpoint{Host: "bücher.example"},
			expected: Endpoint{Host: "xn--bcher-kva.example", Port: "80"},
		},
		{
			name:     "underscored host lowercased as-is",
			input:    Endpoint{Host: "My_Service.Internal", Port: "9090"},
			expected: Endpoint{Host: "my_service.internal", Port: "9090"},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.expected, testCase.input.Normalize())
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	endpoints := []Endpoint{
		{},
		{Host: "Example.COM", HTTPS: true},
		{Host: "bücher.example", Port: "8443", HTTPS: true},
		{Host: "127.0.0.1", Port: "3000"},
	}
	for _, ep := range endpoints {
		once := ep.Normalize()
		assert.Equal(t, once, once.Normalize(), "endpoint %+v", ep)
	}
}

func TestEndpointAsMapKey(t *testing.T) {
	t.Parallel()
	seen := map[Endpoint]int{}
	seen[Endpoint{Host: "Example.com", HTTPS: true}.Normalize()]++
	seen[Endpoint{Host: "example.COM", Port: "443", HTTPS: true}.Normalize()]++
	assert.Len(t, seen, 1)
	assert.Equal(t, 2, seen[Endpoint{Host: "example.com", Port: "443", HTTPS: true}])
}

func TestHostPortAndScheme(t *testing.T) {
	t.Parallel()
	ep := Endpoint{Host: "example.com", Port: "8443", HTTPS: true}
	assert.Equal(t, "example.com:8443", ep.HostPort())
	assert.Equal(t, "https", ep.Scheme())
	assert.Equal(t, "https://example.com:8443", ep.String())

	plain := Endpoint{Host: "example.com", Port: "80"}
	assert.Equal(t, "http", plain.Scheme())
	assert.Equal(t, "http://example.com:80", plain.String())
}
