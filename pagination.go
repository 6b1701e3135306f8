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
	"strings"

	"github.com/kindredlabs/restpool/conn"
)

// Page is one page of a paginated collection: the decoded items plus
// the URL of the next page, empty when this page is the last.
type Page[T any] struct {
	Items   []T
	NextURL string
}

// Pager walks an RFC 5988 Link-paginated collection page by page.
// Create one with NewPager, then call Next until it returns nil.
// Pager is not safe for concurrent use.
type Pager[T any] struct {
	client *Client
	decode Decoder[[]T]
	next   string
	done   bool
}

// NewPager returns a pager starting at firstURL. Each page's body is
// decoded with decode; nil defaults to DecodeJSON, expecting a JSON
// array of T.
func NewPager[T any](client *Client, firstURL string, decode Decoder[[]T]) *Pager[T] {
	if decode == nil {
		decode = DecodeJSON[[]T]
	}
	return &Pager[T]{client: client, decode: decode, next: firstURL}
}

// More reports whether another page is available to fetch.
func (p *Pager[T]) More() bool {
	return !p.done
}

// Next fetches and decodes the next page. It returns (nil, nil) once
// the collection is exhausted. A fetch or decode error stops the
// pager; later calls keep returning (nil, nil).
func (p *Pager[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.done {
		return nil, nil
	}
	response, err := p.client.Get(ctx, p.next)
	if err != nil {
		p.done = true
		return nil, err
	}
	items, err := p.decode(response)
	if err != nil {
		p.done = true
		return nil, err
	}
	page := &Page[T]{Items: items, NextURL: NextLinkURL(response)}
	if page.NextURL == "" {
		p.done = true
	} else {
		p.next = page.NextURL
	}
	return page, nil
}

// NextLinkURL extracts the rel="next" target from a response's Link
// header. Comma-separated link values are scanned in order; a value
// whose parameters include rel="next" (quoted or bare, any case) wins,
// first match only. Returns "" when there is no next link.
func NextLinkURL(response *conn.Response) string {
	return nextLink(response.Header("Link"))
}

func nextLink(header string) string {
	for _, segment := range splitLinkSegments(header) {
		segment = strings.TrimSpace(segment)
		open := strings.IndexByte(segment, '<')
		closing := strings.IndexByte(segment, '>')
		if open < 0 || closing < open {
			continue
		}
		target := segment[open+1 : closing]
		for _, param := range strings.Split(segment[closing+1:], ";") {
			param = strings.TrimSpace(param)
			if !strings.HasPrefix(strings.ToLower(param), "rel=") {
				continue
			}
			rel := strings.Trim(param[len("rel="):], `"`)
			if strings.EqualFold(rel, "next") {
				return target
			}
		}
	}
	return ""
}

// splitLinkSegments splits a Link header on commas that sit outside
// the <...> target, where commas can legally appear inside a URL.
func splitLinkSegments(header string) []string {
	var segments []string
	inTarget := false
	start := 0
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '<':
			inTarget = true
		case '>':
			inTarget = false
		case ',':
			if !inTarget {
				segments = append(segments, header[start:i])
				start = i + 1
			}
		}
	}
	if start < len(header) {
		segments = append(segments, header[start:])
	}
	return segments
}
