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
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredlabs/restpool/conn"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()
	response := &conn.Response{StatusCode: 200, Body: `{"id":7,"name":"widget"}`}
	decoded, err := DecodeJSON[item](response)
	require.NoError(t, err)
	assert.Equal(t, item{ID: 7, Name: "widget"}, decoded)

	_, err = DecodeJSON[item](&conn.Response{Body: "not json"})
	assert.Error(t, err)
}

func TestGetAs(t *testing.T) {
	t.Parallel()
	server := newOrigin(t, func(head, _ string) string {
		return textResponse(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`)
	})
	client := newTestClient(t, WithBaseURL(server.baseURL()))

	items, err := GetAs[[]item](context.Background(), client, "/items", nil)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, items)
}

func TestGetAsCustomDecoder(t *testing.T) {
	t.Parallel()
	server := newOrigin(t, func(head, _ string) string {
		return textResponse("41")
	})
	client := newTestClient(t, WithBaseURL(server.baseURL()))

	value, err := GetAs(context.Background(), client, "/count", func(response *conn.Response) (int, error) {
		parsed, err := strconv.Atoi(strings.TrimSpace(response.Body))
		return parsed + 1, err
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestGetAsPropagatesTransportError(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)
	_, err := GetAs[item](context.Background(), client, "/no-base", nil)
	require.Error(t, err)
}

func TestGetAsDecodesErrorStatusBody(t *testing.T) {
	t.Parallel()
	server := newOrigin(t, func(head, _ string) string {
		body := `{"id":0,"name":"missing"}`
		return "HTTP/1.1 404 Not Found\r\nContent-Length: " +
			strconv.Itoa(len(body)) + "\r\n\r\n" + body
	})
	client := newTestClient(t, WithBaseURL(server.baseURL()))

	decoded, err := GetAs[item](context.Background(), client, "/items/0", nil)
	require.NoError(t, err)
	assert.Equal(t, "missing", decoded.Name)
}
