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
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/kindredlabs/restpool/endpoint"
)

// maxHeaderBytes bounds the response head (status line plus headers).
const maxHeaderBytes = 1 << 20

var errBodyTooLarge = errors.New("response body exceeds configured limit")

// Header is one request header in wire order.
type Header struct {
	Name  string
	Value string
}

// PreparedRequest is a wire-ready HTTP/1.1 request together with the
// endpoint it targets. The endpoint is carried so a Conn can refuse
// requests prepared for a different origin.
type PreparedRequest struct {
	Endpoint endpoint.Endpoint
	Method   string
	Target   string
	Headers  []Header
	Body     string
	HasBody  bool
}

// SetHeader sets a header, overwriting any existing header whose name
// matches case-insensitively. The first occurrence keeps its position;
// later duplicates are dropped.
func (p *PreparedRequest) SetHeader(name, value string) {
	replaced := false
	kept := p.Headers[:0]
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			if replaced {
				continue
			}
			h.Value = value
			replaced = true
		}
		kept = append(kept, h)
	}
	p.Headers = kept
	if !replaced {
		p.Headers = append(p.Headers, Header{Name: name, Value: value})
	}
}

// HeaderValue returns the value of the named header, matched
// case-insensitively, or "".
func (p *PreparedRequest) HeaderValue(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Response is a fully buffered HTTP response. Header keys are stored
// in canonical MIME form; duplicate keys keep the last value.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Header returns the response header for name (any case), or "".
func (r *Response) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

func writeRequest(bw *bufio.Writer, preq *PreparedRequest) error {
	if _, err := fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", preq.Method, preq.Target); err != nil {
		return err
	}
	for _, h := range preq.Headers {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", h.Name, sanitizeHeaderValue(h.Value)); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if preq.HasBody {
		if _, err := bw.WriteString(preq.Body); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// readResponse parses one response head and body from br. It returns
// the response, whether the server's keep-alive semantics allow the
// stream to be reused, and any error. headResponse suppresses the body
// (HEAD requests carry Content-Length without payload).
func readResponse(br *bufio.Reader, maxBodyBytes int64, headResponse bool) (*Response, bool, error) {
	budget := maxHeaderBytes

	statusLine, err := readLine(br, &budget)
	if err != nil {
		return nil, false, err
	}
	proto, statusCode, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, false, err
	}

	headers := make(map[string]string)
	var rawConnection, rawContentLength, rawTransferEncoding string
	for {
		line, err := readLine(br, &budget)
		if err != nil {
			return nil, false, err
		}
		if line == "" {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, false, fmt.Errorf("malformed header line %q", line)
		}
		name := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		headers[name] = value
		switch name {
		case "Connection":
			rawConnection = value
		case "Content-Length":
			rawContentLength = value
		case "Transfer-Encoding":
			rawTransferEncoding = value
		}
	}

	response := &Response{StatusCode: statusCode, Headers: headers}
	keepAlive := keepAliveAllowed(proto, rawConnection)

	if headResponse || statusCode/100 == 1 || statusCode == 204 || statusCode == 304 {
		return response, keepAlive, nil
	}

	switch {
	case strings.Contains(strings.ToLower(rawTransferEncoding), "chunked"):
		body, err := readChunkedBody(br, maxBodyBytes)
		if err != nil {
			return nil, false, err
		}
		response.Body = body
	case rawContentLength != "":
		length, err := strconv.ParseInt(strings.TrimSpace(rawContentLength), 10, 64)
		if err != nil || length < 0 {
			return nil, false, fmt.Errorf("malformed Content-Length %q", rawContentLength)
		}
		if length > maxBodyBytes {
			return nil, false, errBodyTooLarge
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, false, err
		}
		response.Body = string(body)
	default:
		// No framing: the body runs to EOF and the stream dies with it.
		body, err := readAll(br, maxBodyBytes)
		if err != nil {
			return nil, false, err
		}
		response.Body = body
		keepAlive = false
	}

	return response, keepAlive, nil
}

func parseStatusLine(line string) (proto string, statusCode int, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return "", 0, fmt.Errorf("malformed status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return "", 0, fmt.Errorf("malformed status code in %q", line)
	}
	return parts[0], code, nil
}

// keepAliveAllowed applies HTTP/1.x defaults: 1.1 keeps alive unless
// the server says close; 1.0 closes unless the server says keep-alive.
func keepAliveAllowed(proto, connectionHeader string) bool {
	value := strings.ToLower(connectionHeader)
	if strings.Contains(value, "close") {
		return false
	}
	if proto == "HTTP/1.0" {
		return strings.Contains(value, "keep-alive")
	}
	return true
}

func readLine(br *bufio.Reader, budget *int) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		*budget--
		if *budget < 0 {
			return "", errors.New("response header section too large")
		}
		if b == '\n' {
			break
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
	}
	return sb.String(), nil
}

func readChunkedBody(br *bufio.Reader, maxBodyBytes int64) (string, error) {
	var body strings.Builder
	lineBudget := maxHeaderBytes
	for {
		sizeLine, err := readLine(br, &lineBudget)
		if err != nil {
			return "", err
		}
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil || size < 0 {
			return "", fmt.Errorf("malformed chunk size %q", sizeLine)
		}
		if size == 0 {
			break
		}
		if int64(body.Len())+size > maxBodyBytes {
			return "", errBodyTooLarge
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return "", err
		}
		body.Write(chunk)
		if _, err := readLine(br, &lineBudget); err != nil {
			return "", err
		}
	}
	// Discard trailers up to the terminating blank line.
	for {
		line, err := readLine(br, &lineBudget)
		if err != nil {
			return "", err
		}
		if line == "" {
			return body.String(), nil
		}
	}
}

func readAll(br *bufio.Reader, maxBodyBytes int64) (string, error) {
	var body strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := br.Read(buf)
		if int64(body.Len()+n) > maxBodyBytes {
			return "", errBodyTooLarge
		}
		body.Write(buf[:n])
		if err == io.EOF {
			return body.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

func sanitizeHeaderValue(value string) string {
	clean := true
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\r' || c == '\n' || c == 0x7f || (c < 0x20 && c != '\t') {
			clean = false
			break
		}
	}
	if clean {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\r' || c == '\n' || c == 0x7f || (c < 0x20 && c != '\t') {
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
