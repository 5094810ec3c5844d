// Package units converts the human-readable durations and sizes printed by
// docker and df into seconds and gibibytes.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units, in bytes.
const (
	KiB float64 = 1024
	MiB         = 1024 * KiB
	GiBBytes    = 1024 * MiB
	TiB         = 1024 * GiBBytes
)

// Duration constants, in seconds.
const (
	Minute float64 = 60
	Hour           = 60 * Minute
	Day            = 24 * Hour
)

// ErrInvalidDuration indicates that the duration string could not be parsed.
var ErrInvalidDuration = errors.New("invalid duration format")

// MaxSeconds is the longest duration a time.Duration can hold.
const MaxSeconds = Seconds(math.MaxInt64 / int64(time.Second))

// ErrOutOfRange indicates a duration longer than MaxSeconds.
var ErrOutOfRange = errors.New("duration out of range")

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeValue indicates that a negative value was provided.
var ErrNegativeValue = errors.New("value cannot be negative")

// ParseError reports a malformed duration or size string.
type ParseError struct {
	// Kind is "duration" or "size".
	Kind string
	// Input is the raw string as received.
	Input string
	// Err is one of the package sentinels, possibly wrapping a strconv error.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Seconds is a non-negative count of seconds.
type Seconds float64

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// GiB is a non-negative count of gibibytes.
type GiB float64

// Bytes converts g to a whole number of bytes.
func (g GiB) Bytes() uint64 {
	return uint64(float64(g) * GiBBytes)
}

// String renders g with IEC units, e.g. "1.5 GiB".
func (g GiB) String() string {
	return humanize.IBytes(g.Bytes())
}

// durationUnits is checked in order; the first suffix match wins.
var durationUnits = []struct {
	suffixes []string
	split    string
	factor   float64
}{
	{[]string{"d"}, "d", Day},
	{[]string{"h"}, "h", Hour},
	{[]string{"m", "min"}, "m", Minute},
	{[]string{"s"}, "s", 1},
}

// ParseDuration parses a duration such as "12h", "1.5m", "2min", "1d" or "90"
// and returns the equivalent number of seconds.
//
// Suffixes are matched case-insensitively in the order day, hour, minute,
// second. The number is whatever precedes the first occurrence of the matched
// unit letter. A string without a suffix is taken as seconds.
func ParseDuration(s string) (Seconds, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, &ParseError{Kind: "duration", Input: raw, Err: fmt.Errorf("%w: empty string", ErrInvalidDuration)}
	}

	number, factor := s, 1.0
	for _, u := range durationUnits {
		if hasAnySuffix(s, u.suffixes) {
			number, _, _ = strings.Cut(s, u.split)
			factor = u.factor
			break
		}
	}

	value, err := parseNumber(number)
	if err != nil {
		return 0, &ParseError{Kind: "duration", Input: raw, Err: wrapSentinel(ErrInvalidDuration, err)}
	}
	seconds := Seconds(value * factor)
	if seconds > MaxSeconds {
		return 0, &ParseError{Kind: "duration", Input: raw, Err: fmt.Errorf("%w: longer than %v", ErrOutOfRange, MaxSeconds.Duration())}
	}
	return seconds, nil
}

type sizeUnit struct {
	suffixes []string
	split    string
	bytes    float64
}

// sizeUnits is checked in order; the first suffix match wins.
var sizeUnits = []sizeUnit{
	{[]string{"kb", "k"}, "k", KiB},
	{[]string{"mb", "m"}, "m", MiB},
	{[]string{"gb", "g"}, "g", GiBBytes},
	{[]string{"tb", "t"}, "t", TiB},
	{[]string{"b"}, "b", 1},
}

// ParseSize parses a size such as "10GB", "512MB", "40G", "115.2kB (100%)" or
// "5 GB" and returns the equivalent number of gibibytes.
//
// Only the first whitespace-separated token carries the number. If that token
// has no unit and the next token is a bare unit, the unit is taken from there.
// A size without any unit is taken as bytes.
func ParseSize(s string) (GiB, error) {
	raw := s
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return 0, &ParseError{Kind: "size", Input: raw, Err: fmt.Errorf("%w: empty string", ErrInvalidSize)}
	}

	token := fields[0]
	if _, ok := matchSizeUnit(token); !ok && len(fields) > 1 {
		if isBareSizeUnit(fields[1]) {
			token += fields[1]
		}
	}

	number, bytes := token, 1.0
	if u, ok := matchSizeUnit(token); ok {
		number, _, _ = strings.Cut(token, u.split)
		bytes = u.bytes
	}

	value, err := parseNumber(number)
	if err != nil {
		return 0, &ParseError{Kind: "size", Input: raw, Err: wrapSentinel(ErrInvalidSize, err)}
	}
	return GiB(value * bytes / GiBBytes), nil
}

// FormatDuration renders s as a Go duration string ("48h0m0s"), the form the
// docker until= filter accepts.
func FormatDuration(s Seconds) string {
	return s.Duration().String()
}

func matchSizeUnit(token string) (sizeUnit, bool) {
	for _, u := range sizeUnits {
		if hasAnySuffix(token, u.suffixes) {
			return u, true
		}
	}
	return sizeUnit{}, false
}

// isBareSizeUnit reports whether token is nothing but a unit, e.g. "gb".
func isBareSizeUnit(token string) bool {
	for _, u := range sizeUnits {
		for _, suffix := range u.suffixes {
			if token == suffix {
				return true
			}
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// parseNumber parses a finite, non-negative decimal.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing number")
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeValue
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return value, nil
}

func wrapSentinel(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}
