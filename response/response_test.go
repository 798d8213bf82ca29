package response

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"minihttpd/request"
	"minihttpd/sandbox"
)

func decode(t *testing.T, headerBlock string) *request.Request {
	t.Helper()
	req, err := request.Decode(headerBlock)
	if err != nil {
		t.Fatalf("Decode(%q) failed: %v", headerBlock, err)
	}
	return req
}

func okOutcome(body, contentType string) sandbox.Outcome {
	return sandbox.Outcome{Kind: sandbox.OK, Body: []byte(body), ContentType: contentType}
}

func TestBuildBytes(t *testing.T) {
	testCases := []struct {
		name             string
		request          string
		outcome          sandbox.Outcome
		expectedResponse string
	}{
		{
			name:             "Index page",
			request:          "GET / HTTP/1.1\r\n\r\n",
			outcome:          okOutcome("<h1>hi</h1>", "text/html; charset=utf-8"),
			expectedResponse: "HTTP/1.1 200 OK\r\nContent-Length: 11\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<h1>hi</h1>\r\n",
		},
		{
			name:             "HEAD omits body",
			request:          "HEAD / HTTP/1.0\r\n\r\n",
			outcome:          okOutcome("<h1>hi</h1>", "text/html; charset=utf-8"),
			expectedResponse: "HTTP/1.0 200 OK\r\nContent-Length: 11\r\nContent-Type: text/html; charset=utf-8\r\n\r\n\r\n",
		},
		{
			name:             "Not found",
			request:          "GET /missing.txt HTTP/1.1\r\n\r\n",
			outcome:          sandbox.Outcome{Kind: sandbox.NotFound},
			expectedResponse: "HTTP/1.1 404 Not Found\r\nContent-Length: 32\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 404 Not Found\r\n",
		},
		{
			name:             "Forbidden",
			request:          "GET /../../etc/passwd HTTP/1.1\r\n\r\n",
			outcome:          sandbox.Outcome{Kind: sandbox.Forbidden},
			expectedResponse: "HTTP/1.1 403 Forbidden\r\nContent-Length: 32\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 403 Forbidden\r\n",
		},
		{
			name:             "Not modified",
			request:          "GET / HTTP/1.1\r\n\r\n",
			outcome:          sandbox.Outcome{Kind: sandbox.NotModified},
			expectedResponse: "HTTP/1.1 304 Not Modified\r\nContent-Length: 0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n\r\n",
		},
		{
			name:             "No content",
			request:          "GET /empty/ HTTP/1.1\r\n\r\n",
			outcome:          sandbox.Outcome{Kind: sandbox.NoContent},
			expectedResponse: "HTTP/1.1 204 No Content\r\nContent-Length: 0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n\r\n",
		},
		{
			name:             "HTTP/2.0 is a bad request",
			request:          "GET / HTTP/2.0\r\n\r\n",
			outcome:          okOutcome("<h1>hi</h1>", "text/html; charset=utf-8"),
			expectedResponse: "HTTP/2.0 400 Bad Request\r\nContent-Length: 34\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 400 Bad Request\r\n",
		},
		{
			name:             "Unknown method",
			request:          "FOO /x HTTP/1.1\r\n\r\n",
			outcome:          okOutcome("x", "application/octet-stream"),
			expectedResponse: "HTTP/1.1 501 Not Implemented\r\nContent-Length: 38\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 501 Not Implemented\r\n",
		},
		{
			name:             "Unknown version answers as HTTP/1.0",
			request:          "GET / HTTP/9.9\r\n\r\n",
			outcome:          okOutcome("x", "application/octet-stream"),
			expectedResponse: "HTTP/1.0 400 Bad Request\r\nContent-Length: 34\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 400 Bad Request\r\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := Build(decode(t, tc.request), tc.outcome)
			if resp == nil {
				t.Fatal("Expected a response, got nil")
			}
			if got := string(resp.Bytes()); got != tc.expectedResponse {
				t.Errorf("Expected response:\n%q\n\nGot:\n%q", tc.expectedResponse, got)
			}
		})
	}
}

func TestBuildEmptyRequest(t *testing.T) {
	if resp := Build(decode(t, ""), sandbox.Outcome{Kind: sandbox.NotFound}); resp != nil {
		t.Errorf("Expected no response for empty request, got %q", resp.Bytes())
	}
}

func TestBuildContentLengthMatchesBody(t *testing.T) {
	bodies := []string{"", "a", "<h1>hi</h1>", strings.Repeat("0123456789", 1000), "caf\xc3\xa9"}
	methods := []string{"GET", "POST"}
	versions := []string{"HTTP/1.0", "HTTP/1.1"}
	targets := []string{"/", "/index.html", "/a/b/c.txt"}

	for _, method := range methods {
		for _, version := range versions {
			for _, target := range targets {
				for _, body := range bodies {
					req := decode(t, method+" "+target+" "+version+"\r\n\r\n")
					resp := Build(req, okOutcome(body, "text/plain; charset=utf-8"))
					if resp.Status != StatusOK {
						t.Fatalf("%s %s %s: expected 200, got %s", method, target, version, resp.Status)
					}
					length, _ := resp.Header("Content-Length")
					if length != strconv.Itoa(len(resp.Body)) || len(resp.Body) != len(body) {
						t.Errorf("%s %s %s: Content-Length %s for %d body bytes", method, target, version, length, len(resp.Body))
					}
				}
			}
		}
	}
}

func TestBuildHeadParity(t *testing.T) {
	outcomes := []sandbox.Outcome{
		okOutcome("<h1>hi</h1>", "text/html; charset=utf-8"),
		{Kind: sandbox.NotFound},
		{Kind: sandbox.Forbidden},
		{Kind: sandbox.NoContent},
		{Kind: sandbox.NotModified},
	}

	for _, outcome := range outcomes {
		get := Build(decode(t, "GET /x HTTP/1.1\r\n\r\n"), outcome)
		head := Build(decode(t, "HEAD /x HTTP/1.1\r\n\r\n"), outcome)

		if get.Status != head.Status {
			t.Errorf("%s: expected status %s for HEAD, got %s", outcome.Kind, get.Status, head.Status)
		}
		if len(get.Headers) != len(head.Headers) {
			t.Fatalf("%s: header count differs", outcome.Kind)
		}
		for i := range get.Headers {
			if get.Headers[i] != head.Headers[i] {
				t.Errorf("%s: expected header %v, got %v", outcome.Kind, get.Headers[i], head.Headers[i])
			}
		}

		getBytes, headBytes := get.Bytes(), head.Bytes()
		headerEnd := bytes.Index(getBytes, []byte("\r\n\r\n")) + 4
		if !bytes.Equal(getBytes[:headerEnd], headBytes[:headerEnd]) {
			t.Errorf("%s: header bytes differ", outcome.Kind)
		}
		if string(headBytes[headerEnd:]) != "\r\n" {
			t.Errorf("%s: expected HEAD to carry no body, got %q", outcome.Kind, headBytes[headerEnd:])
		}
	}
}

func TestBuildUnsupported(t *testing.T) {
	outcome := okOutcome("x", "text/plain; charset=utf-8")

	for _, method := range []string{"GET", "HEAD", "POST", "PUT", "DELETE", "LINK", "UPLINK", "FOO"} {
		resp := Build(decode(t, method+" /x HTTP/2.0\r\n\r\n"), outcome)
		if resp.Status != StatusBadRequest {
			t.Errorf("%s over HTTP/2.0: expected 400, got %s", method, resp.Status)
		}
	}

	for _, method := range []string{"PUT", "DELETE", "LINK", "UPLINK", "FOO"} {
		resp := Build(decode(t, method+" /x HTTP/1.1\r\n\r\n"), outcome)
		if resp.Status != StatusNotImplemented {
			t.Errorf("%s: expected 501, got %s", method, resp.Status)
		}
	}
}

func TestFailure(t *testing.T) {
	resp := Failure(request.HTTP11, StatusInternalServerError)
	expected := "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 44\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nError Status Code: 500 Internal Server Error\r\n"
	if got := string(resp.Bytes()); got != expected {
		t.Errorf("Expected response:\n%q\n\nGot:\n%q", expected, got)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteToError(t *testing.T) {
	resp := Failure(request.HTTP10, StatusNotFound)
	if _, err := resp.WriteTo(failingWriter{}); err == nil {
		t.Error("Expected write error")
	}
}
