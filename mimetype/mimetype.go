// Package mimetype maps file names to the Content-Type served for them.
package mimetype

import "strings"

const (
	TextPlain   = "text/plain; charset=utf-8"
	TextHTML    = "text/html; charset=utf-8"
	TextCSS     = "text/css; charset=utf-8"
	Icon        = "image/x-icon"
	PDF         = "application/pdf"
	OctetStream = "application/octet-stream"
)

var suffixes = []struct {
	suffix      string
	contentType string
}{
	{".txt", TextPlain},
	{".html", TextHTML},
	{".htm", TextHTML},
	{".css", TextCSS},
	{".ico", Icon},
	{".pdf", PDF},
}

// TypeOf returns the content type for fileName by suffix. Matching is
// case sensitive; anything unknown is application/octet-stream.
func TypeOf(fileName string) string {
	for _, s := range suffixes {
		if strings.HasSuffix(fileName, s.suffix) {
			return s.contentType
		}
	}
	return OctetStream
}

// IsText reports whether contentType is a text type whose bytes are
// normalized to UTF-8 before serving.
func IsText(contentType string) bool {
	return strings.HasPrefix(contentType, "text")
}
