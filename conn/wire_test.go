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

package conn

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFrom(t *testing.T, raw string, maxBodyBytes int64, headResponse bool) (*Response, bool, error) {
	t.Helper()
	return readResponse(bufio.NewReader(strings.NewReader(raw)), maxBodyBytes, headResponse)
}

func TestReadResponseContentLength(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	response, keepAlive, err := readFrom(t, raw, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, "hello", response.Body)
	assert.Equal(t, "text/plain", response.Header("content-type"))
	assert.True(t, keepAlive)
}

func TestReadResponseChunked(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6;ext=1\r\n world\r\n0\r\n\r\n"
	response, keepAlive, err := readFrom(t, raw, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, "hello world", response.Body)
	assert.True(t, keepAlive)
}

func TestReadResponseChunkedTrailers(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nabc\r\n0\r\nExpires: never\r\n\r\n"
	response, _, err := readFrom(t, raw, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, "abc", response.Body)
}

func TestReadResponseBodyLimit(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("x", 16)
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 16\r\n\r\n" + body

	atLimit, _, err := readFrom(t, raw, 16, false)
	require.NoError(t, err)
	assert.Equal(t, body, atLimit.Body)

	_, _, err = readFrom(t, raw, 15, false)
	require.ErrorIs(t, err, errBodyTooLarge)
}

func TestReadResponseChunkedBodyLimit(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"8\r\nabcdefgh\r\n8\r\nijklmnop\r\n0\r\n\r\n"

	_, _, err := readFrom(t, raw, 16, false)
	require.NoError(t, err)

	_, _, err = readFrom(t, raw, 15, false)
	require.ErrorIs(t, err, errBodyTooLarge)
}

func TestReadResponseToEOF(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\n\r\nunframed body"
	response, keepAlive, err := readFrom(t, raw, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, "unframed body", response.Body)
	assert.False(t, keepAlive, "EOF-framed body cannot keep the stream")
}

func TestReadResponseHead(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 512\r\n\r\n"
	response, keepAlive, err := readFrom(t, raw, 1024, true)
	require.NoError(t, err)
	assert.Empty(t, response.Body)
	assert.True(t, keepAlive)
	assert.Equal(t, "512", response.Header("Content-Length"))
}

func TestReadResponseNoBodyStatuses(t *testing.T) {
	t.Parallel()
	for _, status := range []string{"204 No Content", "304 Not Modified", "100 Continue"} {
		raw := "HTTP/1.1 " + status + "\r\n\r\n"
		response, keepAlive, err := readFrom(t, raw, 1024, false)
		require.NoError(t, err, "status %q", status)
		assert.Empty(t, response.Body)
		assert.True(t, keepAlive)
	}
}

func TestKeepAliveSemantics(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		proto     string
		header    string
		keepAlive bool
	}{
		{name: "1.1 default", proto: "HTTP/1.1", header: "", keepAlive: true},
		{name: "1.1 close", proto: "HTTP/1.1", header: "close", keepAlive: false},
		{name: "1.1 Close case", proto: "HTTP/1.1", header: "Close", keepAlive: false},
		{name: "1.0 default", proto: "HTTP/1.0", header: "", keepAlive: false},
		{name: "1.0 keep-alive", proto: "HTTP/1.0", header: "keep-alive", keepAlive: true},
		{name: "1.0 close", proto: "HTTP/1.0", header: "close", keepAlive: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.keepAlive, keepAliveAllowed(testCase.proto, testCase.header))
		})
	}
}

func TestReadResponseMalformed(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"NOPE 200 OK\r\n\r\n",
		"HTTP/1.1 banana OK\r\n\r\n",
		"HTTP/1.1 99 Low\r\n\r\n",
		"HTTP/1.1 200 OK\r\nBadHeaderNoColon\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Length: -3\r\n\r\n",
		"HTTP/1.1 200 OK\r\nContent-Length: abc\r\n\r\n",
	}
	for _, input := range inputs {
		_, _, err := readFrom(t, input, 1024, false)
		assert.Error(t, err, "input %q", input)
	}
}

func TestWriteRequest(t *testing.T) {
	t.Parallel()
	preq := &PreparedRequest{
		Method: "POST",
		Target: "/v1/items?x=1",
		Headers: []Header{
			{Name: "Host", Value: "example.com"},
			{Name: "Content-Length", Value: "4"},
		},
		Body:    "data",
		HasBody: true,
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, writeRequest(bw, preq))
	expected := "POST /v1/items?x=1 HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 4\r\n" +
		"\r\n" +
		"data"
	assert.Equal(t, expected, buf.String())
}

func TestWriteRequestStripsHeaderInjection(t *testing.T) {
	t.Parallel()
	preq := &PreparedRequest{
		Method: "GET",
		Target: "/",
		Headers: []Header{
			{Name: "X-Info", Value: "ok\r\nX-Evil: injected"},
		},
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, writeRequest(bw, preq))
	assert.NotContains(t, buf.String(), "X-Evil: injected\r\n")
	assert.Contains(t, buf.String(), "X-Info: okX-Evil: injected\r\n")
}

func TestPreparedRequestSetHeader(t *testing.T) {
	t.Parallel()
	preq := &PreparedRequest{}
	preq.SetHeader("Accept", "text/plain")
	preq.SetHeader("accept", "application/json")
	require.Len(t, preq.Headers, 1)
	assert.Equal(t, "Accept", preq.Headers[0].Name, "first occurrence keeps its spelling")
	assert.Equal(t, "application/json", preq.Headers[0].Value)
	assert.Equal(t, "application/json", preq.HeaderValue("ACCEPT"))
	assert.Equal(t, "", preq.HeaderValue("missing"))
}

func TestResponseHeaderLastValueWins(t *testing.T) {
	t.Parallel()
	raw := "HTTP/1.1 200 OK\r\nX-Dup: first\r\nX-Dup: second\r\nContent-Length: 0\r\n\r\n"
	response, _, err := readFrom(t, raw, 1024, false)
	require.NoError(t, err)
	assert.Equal(t, "second", response.Header("x-dup"))
}
