package server

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"minihttpd/request"
	"minihttpd/response"
)

var (
	successColor  = color.New(color.FgGreen)
	redirectColor = color.New(color.FgCyan)
	clientColor   = color.New(color.FgYellow)
	serverColor   = color.New(color.FgRed, color.Bold)
)

// statusColor picks the color for a status class.
func statusColor(status response.Status) *color.Color {
	switch {
	case status >= 500:
		return serverColor
	case status >= 400:
		return clientColor
	case status >= 300:
		return redirectColor
	}
	return successColor
}

// logAccess writes one line per answered request. written is what went on
// the wire; the size column is the body the client was told about.
func (s *Server) logAccess(req *request.Request, resp *response.Response, written int64, elapsed time.Duration) {
	s.log.Printf("%s %s %s -> %s (%s body, %s on wire) in %s",
		req.Method, req.Target, req.Version,
		statusColor(resp.Status).Sprint(resp.Status.String()),
		humanize.Bytes(uint64(len(resp.Body))),
		humanize.Bytes(uint64(written)),
		elapsed.Round(time.Microsecond))
}
