// Package response turns a decoded request and its resolution outcome into
// the bytes sent back on the connection.
package response

import (
	"bytes"
	"io"
	"strconv"

	"github.com/valyala/fasthttp"

	"minihttpd/mimetype"
	"minihttpd/request"
	"minihttpd/sandbox"
)

// Status is an HTTP status code.
type Status int

const (
	StatusOK                  Status = fasthttp.StatusOK
	StatusNoContent           Status = fasthttp.StatusNoContent
	StatusNotModified         Status = fasthttp.StatusNotModified
	StatusBadRequest          Status = fasthttp.StatusBadRequest
	StatusForbidden           Status = fasthttp.StatusForbidden
	StatusNotFound            Status = fasthttp.StatusNotFound
	StatusInternalServerError Status = fasthttp.StatusInternalServerError
	StatusNotImplemented      Status = fasthttp.StatusNotImplemented
)

// String renders the status as it appears in the status line, e.g. "404 Not Found".
func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + fasthttp.StatusMessage(int(s))
}

// IsError reports whether s is answered with a generated error body.
func (s Status) IsError() bool { return s >= 400 }

var statusOf = map[sandbox.Kind]Status{
	sandbox.OK:          StatusOK,
	sandbox.NotModified: StatusNotModified,
	sandbox.NoContent:   StatusNoContent,
	sandbox.NotFound:    StatusNotFound,
	sandbox.Forbidden:   StatusForbidden,
}

// Header is one response header line.
type Header struct {
	Key   string
	Value string
}

// Response is a complete message. Headers keep their insertion order.
type Response struct {
	Version  string
	Status   Status
	Headers  []Header
	Body     []byte
	OmitBody bool
}

// Check applies the version and method rules that hold regardless of what
// the target resolves to. ok is false when status must be sent as is.
func Check(req *request.Request) (status Status, ok bool) {
	switch req.Version {
	case request.HTTP10, request.HTTP11:
	default:
		return StatusBadRequest, false
	}

	switch req.Method {
	case request.MethodGet, request.MethodHead, request.MethodPost:
		return StatusOK, true
	}
	return StatusNotImplemented, false
}

// Build assembles the response for req. It returns nil for the empty
// request, which is answered with no bytes at all.
func Build(req *request.Request, outcome sandbox.Outcome) *Response {
	if req.Empty() {
		return nil
	}

	var resp *Response
	if status, ok := Check(req); !ok {
		resp = Failure(req.Version, status)
	} else {
		resp = fromOutcome(req.Version, outcome)
	}
	resp.OmitBody = req.Method == request.MethodHead
	return resp
}

func fromOutcome(version request.Version, outcome sandbox.Outcome) *Response {
	status, ok := statusOf[outcome.Kind]
	if !ok {
		return Failure(version, StatusInternalServerError)
	}

	switch {
	case status.IsError():
		return Failure(version, status)
	case status == StatusOK:
		return newResponse(version, status, outcome.ContentType, outcome.Body)
	}
	return newResponse(version, status, mimetype.TextPlain, nil)
}

// Failure builds a response with the generated error body for status.
func Failure(version request.Version, status Status) *Response {
	body := []byte("Error Status Code: " + status.String())
	return newResponse(version, status, mimetype.TextPlain, body)
}

func newResponse(version request.Version, status Status, contentType string, body []byte) *Response {
	return &Response{
		Version: statusLineVersion(version),
		Status:  status,
		Headers: []Header{
			{Key: "Content-Length", Value: strconv.Itoa(len(body))},
			{Key: "Content-Type", Value: contentType},
		},
		Body: body,
	}
}

// statusLineVersion echoes the request's version; requests with an
// unrecognized version are answered as HTTP/1.0.
func statusLineVersion(version request.Version) string {
	if version == request.VersionUnknown {
		return request.HTTP10.String()
	}
	return version.String()
}

// Header returns the value of the first header named key.
func (r *Response) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Bytes returns exactly what WriteTo writes.
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	r.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the status line, the headers, the body unless it is
// omitted, and a trailing CRLF.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 0, 128+len(r.Body))
	buf = append(buf, r.Version...)
	buf = append(buf, ' ')
	buf = append(buf, r.Status.String()...)
	buf = append(buf, "\r\n"...)
	for _, h := range r.Headers {
		buf = append(buf, h.Key...)
		buf = append(buf, ": "...)
		buf = append(buf, h.Value...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	if !r.OmitBody {
		buf = append(buf, r.Body...)
	}
	buf = append(buf, "\r\n"...)

	n, err := w.Write(buf)
	return int64(n), err
}
