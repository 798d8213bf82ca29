// Package httpdate decodes the timestamps carried by If-Modified-Since.
package httpdate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedDate is returned for any timestamp that does not follow
// "<weekday> <day> <Mon> <year> <hour>:<min>:<sec> <tz>".
var ErrMalformedDate = errors.New("malformed date")

var months = map[string]time.Month{
	"Jan": time.January,
	"Feb": time.February,
	"Mar": time.March,
	"Apr": time.April,
	"May": time.May,
	"Jun": time.June,
	"Jul": time.July,
	"Aug": time.August,
	"Sep": time.September,
	"Oct": time.October,
	"Nov": time.November,
	"Dec": time.December,
}

// Parse interprets text as a UTC timestamp.
func Parse(text string) (time.Time, error) {
	return ParseInLocation(text, time.UTC)
}

// ParseInLocation interprets the fields of text as wall-clock time in loc.
// The weekday and zone fields are positional only and never consumed:
//
//	Sun, 06 Nov 1994 08:49:37 GMT
//	 0   1   2   3    4  5  6  7
func ParseInLocation(text string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(strings.ReplaceAll(text, ":", " "), " ")
	if len(parts) < 7 {
		return time.Time{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedDate, text, len(parts))
	}

	month, ok := months[parts[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month %q", ErrMalformedDate, parts[2])
	}

	var fields [5]int
	for i, idx := range [5]int{1, 3, 4, 5, 6} {
		n, err := strconv.Atoi(parts[idx])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: field %q is not a number", ErrMalformedDate, parts[idx])
		}
		fields[i] = n
	}
	day, year, hour, minute, sec := fields[0], fields[1], fields[2], fields[3], fields[4]

	if day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 || sec < 0 || sec > 60 {
		return time.Time{}, fmt.Errorf("%w: %q out of range", ErrMalformedDate, text)
	}
	if sec == 60 { // leap second
		sec = 59
	}

	t := time.Date(year, month, day, hour, minute, sec, 0, loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %s has no day %d", ErrMalformedDate, month, day)
	}
	return t, nil
}
