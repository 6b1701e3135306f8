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
	"strings"

	"github.com/kindredlabs/restpool/resterr"
)

// URL holds the components the client needs from an absolute HTTP(S)
// URL: the scheme flag, host, port, and the request-line target
// (path plus query). For a base URL the target is a normalized prefix
// with no trailing slash (possibly empty) and never carries a query.
type URL struct {
	HTTPS  bool
	Host   string
	Port   string
	Target string
}

// Endpoint derives the normalized origin identity for u.
func (u URL) Endpoint() Endpoint {
	return Endpoint{Host: u.Host, Port: u.Port, HTTPS: u.HTTPS}.Normalize()
}

// String reassembles u into scheme://host:port + target form.
func (u URL) String() string {
	scheme := "http"
	if u.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + u.Host + ":" + u.Port + u.Target
}

// ParseURL parses an absolute http:// or https:// URL. A missing port
// defaults to 443 for https and 80 otherwise; an empty host or an
// empty explicit port is invalid. When the URL has no path the target
// is "/", otherwise the target is the literal substring starting at
// the first "/", including any query string.
func ParseURL(rawURL string) (URL, error) {
	rest := rawURL
	var https bool
	switch {
	case strings.HasPrefix(rest, "https://"):
		https = true
		rest = rest[len("https://"):]
	case strings.HasPrefix(rest, "http://"):
		rest = rest[len("http://"):]
	default:
		return URL{}, resterr.New(resterr.KindInvalidURL, "URL must start with http:// or https://")
	}

	hostPort := rest
	target := "/"
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		hostPort = rest[:slash]
		target = rest[slash:]
	}
	if hostPort == "" {
		return URL{}, resterr.New(resterr.KindInvalidURL, "URL missing host")
	}

	host := hostPort
	var port string
	if colon := strings.LastIndexByte(hostPort, ':'); colon >= 0 {
		host = hostPort[:colon]
		port = hostPort[colon+1:]
		if port == "" {
			return URL{}, resterr.New(resterr.KindInvalidURL, "URL has empty port")
		}
	} else if https {
		port = "443"
	} else {
		port = "80"
	}
	if host == "" {
		return URL{}, resterr.New(resterr.KindInvalidURL, "URL has empty host")
	}

	return URL{HTTPS: https, Host: host, Port: port, Target: target}, nil
}

// ParseBaseURL parses an absolute URL for use as a client's base. The
// target is normalized into a prefix: trailing slashes are stripped
// and a bare "/" becomes the empty string. A base URL must not carry
// a query string.
func ParseBaseURL(rawURL string) (URL, error) {
	parsed, err := ParseURL(rawURL)
	if err != nil {
		return URL{}, err
	}
	if strings.ContainsRune(parsed.Target, '?') {
		return URL{}, resterr.New(resterr.KindInvalidURL, "base URL must not contain a query string")
	}
	parsed.Target = strings.TrimRight(parsed.Target, "/")
	return parsed, nil
}

// Resolve turns urlOrPath into URL components. Absolute URLs are
// parsed directly. Relative paths require a base: the base prefix is
// prepended, inserting a leading "/" when the path lacks one, and an
// empty path resolves to the prefix root. A relative path with a nil
// base is invalid.
func Resolve(urlOrPath string, base *URL) (URL, error) {
	if strings.HasPrefix(urlOrPath, "http://") || strings.HasPrefix(urlOrPath, "https://") {
		return ParseURL(urlOrPath)
	}
	if base == nil {
		return URL{}, resterr.New(resterr.KindInvalidURL, "relative URL provided but no base URL configured")
	}
	path := urlOrPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resolved := *base
	resolved.Target = base.Target + path
	return resolved, nil
}
