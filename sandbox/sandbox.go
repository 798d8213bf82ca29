// Package sandbox maps request targets onto files confined to a document root.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"minihttpd/mimetype"
	"minihttpd/request"
)

// Kind tags the result of a resolution.
type Kind uint8

const (
	Forbidden Kind = iota + 1
	NotFound
	NoContent
	NotModified
	OK
)

func (k Kind) String() string {
	switch k {
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case NoContent:
		return "NoContent"
	case NotModified:
		return "NotModified"
	case OK:
		return "OK"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Outcome is produced once per request and consumed by the response
// builder. Body and ContentType are only set for OK.
type Outcome struct {
	Kind        Kind
	Body        []byte
	ContentType string
	Path        string
	ModTime     time.Time
}

// Resolver resolves targets against one document root. It holds no
// mutable state and may be shared between connections.
type Resolver struct {
	root     string
	volume   string
	segments []string
}

// New canonicalizes root (absolute, symlinks evaluated). The root must be
// an existing directory.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: document root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: document root %s: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("sandbox: document root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: document root %s is not a directory", root)
	}

	volume, segments := splitPath(resolved)
	return &Resolver{root: resolved, volume: volume, segments: segments}, nil
}

// Root returns the canonical document root.
func (r *Resolver) Root() string { return r.root }

// Resolve is a one-shot helper for callers without a long-lived Resolver.
func Resolve(req *request.Request, root string) (Outcome, error) {
	r, err := New(root)
	if err != nil {
		return Outcome{}, err
	}
	return r.Resolve(req)
}

// Resolve maps req.Target into the document root and loads what it names.
// Every expected condition is reported through Outcome.Kind; the error is
// reserved for filesystem failures that are neither "missing" nor
// "permission denied".
func (r *Resolver) Resolve(req *request.Request) (Outcome, error) {
	path, kind := r.canonical(req.Target)
	if kind != 0 {
		return Outcome{Kind: kind, Path: path}, nil
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return classify(path, err)
	}
	if volume, segments := splitPath(resolved); !r.contains(volume, segments) {
		return Outcome{Kind: Forbidden, Path: resolved}, nil
	}

	return r.load(resolved, req.IfModifiedSince)
}

// canonical joins target onto the root and collapses "." and ".."
// segments on a stack. A nonzero Kind means the target was rejected.
func (r *Resolver) canonical(target string) (string, Kind) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	target, err := url.PathUnescape(target)
	if err != nil {
		return "", NotFound
	}
	if strings.IndexByte(target, 0) >= 0 {
		return "", Forbidden
	}
	if filepath.Separator != '/' && strings.ContainsRune(target, filepath.Separator) {
		return "", Forbidden
	}

	stack := make([]string, len(r.segments), len(r.segments)+8)
	copy(stack, r.segments)

	for _, segment := range strings.Split(target, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", Forbidden
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, segment)
		}
	}

	path := joinPath(r.volume, stack)
	if !r.contains(r.volume, stack) {
		return path, Forbidden
	}
	return path, 0
}

// contains compares segment sequences, so a sibling such as "www-evil"
// never passes for a root ending in "www".
func (r *Resolver) contains(volume string, segments []string) bool {
	if volume != r.volume || len(segments) < len(r.segments) {
		return false
	}
	for i, segment := range r.segments {
		if segments[i] != segment {
			return false
		}
	}
	return true
}

func (r *Resolver) load(path string, ifModifiedSince *time.Time) (Outcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return classify(path, err)
	}

	if info.IsDir() {
		index, err := findIndex(path)
		if err != nil {
			return classify(path, err)
		}
		if index == "" {
			if notModified(info, ifModifiedSince) {
				return Outcome{Kind: NotModified, Path: path, ModTime: info.ModTime()}, nil
			}
			return Outcome{Kind: NoContent, Path: path, ModTime: info.ModTime()}, nil
		}
		path = filepath.Join(path, index)
		if info, err = os.Stat(path); err != nil {
			return classify(path, err)
		}
	}

	if !info.Mode().IsRegular() {
		return Outcome{Kind: Forbidden, Path: path}, nil
	}
	if notModified(info, ifModifiedSince) {
		return Outcome{Kind: NotModified, Path: path, ModTime: info.ModTime()}, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return classify(path, err)
	}

	contentType := mimetype.TypeOf(filepath.Base(path))
	if mimetype.IsText(contentType) {
		body = normalizeUTF8(body)
	}

	return Outcome{
		Kind:        OK,
		Body:        body,
		ContentType: contentType,
		Path:        path,
		ModTime:     info.ModTime(),
	}, nil
}

// findIndex returns the first regular file in dir, by name, whose name
// starts with "index.", or "" if there is none.
func findIndex(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "index.") && entry.Type().IsRegular() {
			return entry.Name(), nil
		}
	}
	return "", nil
}

// notModified compares at second resolution, the precision of HTTP dates.
func notModified(info fs.FileInfo, ifModifiedSince *time.Time) bool {
	if ifModifiedSince == nil {
		return false
	}
	return info.ModTime().Unix() <= ifModifiedSince.Unix()
}

func classify(path string, err error) (Outcome, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return Outcome{Kind: NotFound, Path: path}, nil
	case errors.Is(err, fs.ErrPermission):
		return Outcome{Kind: Forbidden, Path: path}, nil
	}
	return Outcome{}, fmt.Errorf("sandbox: %s: %w", path, err)
}

// normalizeUTF8 re-encodes b. Each maximal subpart of an ill-formed
// sequence becomes one U+FFFD: a truncated multi-byte sequence is replaced
// once, a stray byte that cannot start or continue one is replaced alone.
func normalizeUTF8(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out := make([]byte, 0, len(b)+8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = maximalSubpart(b)
		}
		out = utf8.AppendRune(out, r)
		b = b[size:]
	}
	return out
}

// maximalSubpart returns the length of the longest prefix of b that starts
// a well-formed sequence, or 1 if b[0] cannot start one.
func maximalSubpart(b []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xBF)
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}

	n := 1
	for ; n <= need && n < len(b); n++ {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
	}
	return n
}

func splitPath(path string) (string, []string) {
	volume := filepath.VolumeName(path)
	var segments []string
	for _, segment := range strings.Split(path[len(volume):], string(filepath.Separator)) {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return volume, segments
}

func joinPath(volume string, segments []string) string {
	return volume + string(filepath.Separator) + strings.Join(segments, string(filepath.Separator))
}
