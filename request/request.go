// Package request decodes raw HTTP header blocks.
package request

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"time"

	httperrors "minihttpd/errors"
	"minihttpd/httpdate"
)

// Method is an HTTP request method. MethodUnknown covers any token
// outside the known set.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodLink
	MethodUplink
)

var methodTokens = map[string]Method{
	"GET":    MethodGet,
	"HEAD":   MethodHead,
	"POST":   MethodPost,
	"PUT":    MethodPut,
	"DELETE": MethodDelete,
	"LINK":   MethodLink,
	"UPLINK": MethodUplink,
}

func (m Method) String() string {
	for token, method := range methodTokens {
		if method == m {
			return token
		}
	}
	return "UNKNOWN"
}

// Version is the protocol version of a request line.
type Version uint8

const (
	VersionUnknown Version = iota
	HTTP10
	HTTP11
	HTTP20
)

var versionTokens = map[string]Version{
	"HTTP/1.0": HTTP10,
	"HTTP/1.1": HTTP11,
	"HTTP/2.0": HTTP20,
}

func (v Version) String() string {
	switch v {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	case HTTP20:
		return "HTTP/2.0"
	}
	return "UNKNOWN"
}

const ifModifiedSince = "If-Modified-Since"

// Request is a decoded header block. The target is kept exactly as
// received; mapping it onto the filesystem is the sandbox's job.
type Request struct {
	Raw             string
	Method          Method
	Target          string
	Version         Version
	IfModifiedSince *time.Time
}

// Empty reports whether the connection delivered no request at all.
func (r *Request) Empty() bool { return r.Raw == "" }

// Conditional reports whether an If-Modified-Since date was decoded.
func (r *Request) Conditional() bool { return r.IfModifiedSince != nil }

// ReadHeaderBlock reads lines up to and including the blank line that ends
// the headers, or until EOF. Every line is handed back CRLF-terminated,
// whatever terminator the peer used. Nothing but EOF yields "".
//
// A positive limit bounds the block; reading stops as soon as it is
// exceeded, so at most limit bytes plus one buffer of r are consumed.
func ReadHeaderBlock(r *bufio.Reader, limit int) (string, error) {
	var builder strings.Builder
	var line []byte

	for {
		fragment, err := r.ReadSlice('\n')
		line = append(line, fragment...)
		if limit > 0 && builder.Len()+len(line) > limit {
			return "", httperrors.NewDecodeError(httperrors.HeaderTooLarge, "", nil)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if len(line) == 0 && err != nil {
			break
		}

		text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
		line = line[:0]
		builder.WriteString(text)
		builder.WriteString("\r\n")

		if limit > 0 && builder.Len() > limit {
			return "", httperrors.NewDecodeError(httperrors.HeaderTooLarge, "", nil)
		}
		if text == "" || err != nil {
			break
		}
	}

	return builder.String(), nil
}

// Decode parses a header block with If-Modified-Since dates read as UTC.
func Decode(headerBlock string) (*Request, error) {
	return DecodeWithLocation(headerBlock, time.UTC)
}

// DecodeWithLocation parses a header block, e.g.:
//
//	GET /index.html HTTP/1.1
//	Host: www.example.com
//	If-Modified-Since: Sun, 06 Nov 1994 08:49:37 GMT
//
// Unknown methods and versions are not errors; they are reported through
// MethodUnknown and VersionUnknown so the response can pick the status.
func DecodeWithLocation(headerBlock string, loc *time.Location) (*Request, error) {
	req := &Request{Raw: headerBlock}
	if headerBlock == "" {
		return req, nil
	}

	lines := strings.Split(headerBlock, "\r\n")

	parts := strings.Split(lines[0], " ")
	if len(parts) < 3 {
		return nil, httperrors.NewDecodeError(httperrors.MalformedRequestLine, lines[0], nil)
	}
	if !strings.HasPrefix(parts[1], "/") {
		return nil, httperrors.NewDecodeError(httperrors.MalformedRequestLine, "target must start with /", nil)
	}

	req.Method = methodTokens[parts[0]]
	req.Target = parts[1]
	req.Version = versionTokens[parts[2]]

	if req.Method != MethodGet {
		return req, nil
	}

	// last matching header line takes precedence
	for _, line := range lines {
		if !strings.HasPrefix(line, ifModifiedSince) {
			continue
		}
		value := strings.TrimPrefix(line, ifModifiedSince)
		value = strings.TrimLeft(strings.TrimPrefix(value, ":"), " ")

		date, err := httpdate.ParseInLocation(value, loc)
		if err != nil {
			return nil, httperrors.NewDecodeError(httperrors.MalformedDate, value, err)
		}
		req.IfModifiedSince = &date
	}

	return req, nil
}
