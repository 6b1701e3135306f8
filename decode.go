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
	"encoding/json"

	"github.com/kindredlabs/restpool/conn"
)

// Decoder converts a buffered response into a typed value. The core
// only supplies the plumbing; the conversion itself is the caller's,
// with DecodeJSON as the common case.
type Decoder[T any] func(*conn.Response) (T, error)

// DecodeJSON unmarshals the response body as JSON into T.
func DecodeJSON[T any](response *conn.Response) (T, error) {
	var value T
	err := json.Unmarshal([]byte(response.Body), &value)
	return value, err
}

// GetAs issues a GET and decodes the response with decode. A nil
// decoder defaults to DecodeJSON. The response is decoded regardless
// of status code; callers that care should use Get and inspect the
// status first.
func GetAs[T any](ctx context.Context, client *Client, url string, decode Decoder[T]) (T, error) {
	if decode == nil {
		decode = DecodeJSON[T]
	}
	response, err := client.Get(ctx, url)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(response)
}
