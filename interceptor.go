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
	"net/url"
	"strings"

	"github.com/kindredlabs/restpool/endpoint"
)

// RequestInterceptor mutates a request before it is prepared for the
// wire. Interceptors run in configuration order on a copy of the
// request; resolved describes where the request will go, including the
// effect of the client's base URL. Interceptors cannot fail.
type RequestInterceptor interface {
	Prepare(req *Request, resolved endpoint.URL)
}

// BearerAuthInterceptor injects an Authorization header carrying a
// bearer token.
type BearerAuthInterceptor struct {
	token string
}

// NewBearerAuth returns an interceptor that sets
// "Authorization: Bearer <token>" on every request.
func NewBearerAuth(token string) *BearerAuthInterceptor {
	return &BearerAuthInterceptor{token: token}
}

func (b *BearerAuthInterceptor) Prepare(req *Request, _ endpoint.URL) {
	req.SetHeader("Authorization", "Bearer "+b.token)
}

// APIKeyInterceptor injects an API key either as a named header or as
// a URL query parameter.
type APIKeyInterceptor struct {
	name    string
	key     string
	inQuery bool
}

// NewAPIKeyHeader returns an interceptor that sets header name to key
// on every request.
func NewAPIKeyHeader(name, key string) *APIKeyInterceptor {
	return &APIKeyInterceptor{name: name, key: key}
}

// NewAPIKeyQuery returns an interceptor that appends param=key to the
// request URL's query string. An existing query is extended with "&";
// otherwise "?" starts one. A URL that already ends in "?" or "&" gets
// no extra separator. A URL fragment stays at the end.
func NewAPIKeyQuery(param, key string) *APIKeyInterceptor {
	return &APIKeyInterceptor{name: param, key: key, inQuery: true}
}

func (a *APIKeyInterceptor) Prepare(req *Request, _ endpoint.URL) {
	if !a.inQuery {
		req.SetHeader(a.name, a.key)
		return
	}
	req.URL = appendQueryParam(req.URL, a.name, a.key)
}

func appendQueryParam(rawURL, name, value string) string {
	var fragment string
	if hash := strings.IndexByte(rawURL, '#'); hash >= 0 {
		fragment = rawURL[hash:]
		rawURL = rawURL[:hash]
	}
	sep := "?"
	if strings.ContainsRune(rawURL, '?') {
		sep = "&"
	}
	if strings.HasSuffix(rawURL, "?") || strings.HasSuffix(rawURL, "&") {
		sep = ""
	}
	return rawURL + sep + url.QueryEscape(name) + "=" + url.QueryEscape(value) + fragment
}
