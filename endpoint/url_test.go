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
	"github.com/stretchr/testify/require"

	"github.com/kindredlabs/restpool/resterr"
)

func TestParseURL(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    string
		expected URL
	}{
		{
			name:     "plain http with path",
			input:    "http://example.com/a/b?x=1",
			expected: URL{Host: "example.com", Port: "80", Target: "/a/b?x=1"},
		},
		{
			name:     "https default port",
			input:    "https://example.com",
			expected: URL{HTTPS: true, Host: "example.com", Port: "443", Target: "/"},
		},
		{
			name:     "explicit port",
			input:    "http://example.com:8080/x",
			expected: URL{Host: "example.com", Port: "8080", Target: "/x"},
		},
		{
			name:     "no path defaults to slash",
			input:    "http://example.com:9000",
			expected: URL{Host: "example.com", Port: "9000", Target: "/"},
		},
		{
			name:     "query without path",
			input:    "http://example.com/?q=1",
			expected: URL{Host: "example.com", Port: "80", Target: "/?q=1"},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			parsed, err := ParseURL(testCase.input)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, parsed)
		})
	}
}

func TestParseURLInvalid(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"ftp://example.com/",
		"example.com/path",
		"http://",
		"http:///path",
		"http://example.com:/x",
		"http://:8080/x",
	}
	for _, input := range inputs {
		_, err := ParseURL(input)
		require.Error(t, err, "input %q", input)
		assert.Equal(t, resterr.KindInvalidURL, resterr.KindOf(err), "input %q", input)
	}
}

func TestParseURLRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"http://example.com/a/b?x=1",
		"https://example.com:8443/",
		"http://example.com:9000",
		"https://example.com/deep/path?a=b&c=d",
	}
	for _, input := range inputs {
		first, err := ParseURL(input)
		require.NoError(t, err)
		second, err := ParseURL(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, second, "input %q", input)
	}
}

func TestParseBaseURL(t *testing.T) {
	t.Parallel()
	base, err := ParseBaseURL("http://h/api/")
	require.NoError(t, err)
	assert.Equal(t, "/api", base.Target)

	root, err := ParseBaseURL("http://h/")
	require.NoError(t, err)
	assert.Equal(t, "", root.Target)

	bare, err := ParseBaseURL("http://h")
	require.NoError(t, err)
	assert.Equal(t, "", bare.Target)

	_, err = ParseBaseURL("http://h/api?x=1")
	require.Error(t, err)
	assert.Equal(t, resterr.KindInvalidURL, resterr.KindOf(err))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	base, err := ParseBaseURL("http://h/api")
	require.NoError(t, err)

	testCases := []struct {
		name           string
		urlOrPath      string
		expectedTarget string
	}{
		{name: "leading slash", urlOrPath: "/ping", expectedTarget: "/api/ping"},
		{name: "no leading slash", urlOrPath: "ping", expectedTarget: "/api/ping"},
		{name: "empty resolves to prefix root", urlOrPath: "", expectedTarget: "/api/"},
		{name: "query carried", urlOrPath: "/ping?x=1", expectedTarget: "/api/ping?x=1"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			resolved, err := Resolve(testCase.urlOrPath, &base)
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedTarget, resolved.Target)
			assert.Equal(t, "h", resolved.Host)
		})
	}
}

func TestResolveAbsoluteIgnoresBase(t *testing.T) {
	t.Parallel()
	base, err := ParseBaseURL("http://h/api")
	require.NoError(t, err)

	resolved, err := Resolve("http://other/x", &base)
	require.NoError(t, err)
	direct, err := ParseURL("http://other/x")
	require.NoError(t, err)
	assert.Equal(t, direct, resolved)

	noBase, err := Resolve("https://other:8443/y", nil)
	require.NoError(t, err)
	assert.Equal(t, "other", noBase.Host)
	assert.Equal(t, "8443", noBase.Port)
}

func TestResolveRelativeWithoutBase(t *testing.T) {
	t.Parallel()
	_, err := Resolve("/ping", nil)
	require.Error(t, err)
	assert.Equal(t, resterr.KindInvalidURL, resterr.KindOf(err))
}

func TestURLEndpoint(t *testing.T) {
	t.Parallel()
	parsed, err := ParseURL("https://Example.COM/x")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "example.com", Port: "443", HTTPS: true}, parsed.Endpoint())
}
