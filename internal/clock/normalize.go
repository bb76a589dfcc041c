// Package clock turns the timestamp formats written by the job logger and the
// power collectors into comparable UTC instants with millisecond resolution.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultOffset is the offset of the naive local collector clock from UTC.
const DefaultOffset = -5 * time.Hour

// Format selects how a raw timestamp is interpreted.
type Format int

const (
	// FormatISO is ISO-8601 with an optional zone suffix; naive values are UTC.
	FormatISO Format = iota
	// FormatLocal is ISO-8601 written by a collector running on local time;
	// naive values are shifted by the configured offset.
	FormatLocal
	// FormatGadget is the vendor CPU collector's HH:MM:SS:mmm time of day,
	// combined with a YYYYMMDD date taken from elsewhere (the file name).
	FormatGadget
	// FormatStamp is the compact YYYYMMDD_HHMMSS stamp the collection scripts
	// put in file names, written on the local clock.
	FormatStamp
)

func (f Format) String() string {
	switch f {
	case FormatISO:
		return "iso"
	case FormatLocal:
		return "local"
	case FormatGadget:
		return "gadget"
	case FormatStamp:
		return "stamp"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Hint tells the normalizer which format to expect.
type Hint struct {
	Format Format
	// Date is the YYYYMMDD fragment used with FormatGadget.
	Date string
}

// ISO is the hint for zone-aware or UTC ISO-8601 values.
var ISO = Hint{Format: FormatISO}

// Local is the hint for naive local ISO-8601 values.
var Local = Hint{Format: FormatLocal}

// Stamp is the hint for file-name stamps.
var Stamp = Hint{Format: FormatStamp}

// Gadget returns the hint for a vendor CPU time of day on the given date.
func Gadget(date string) Hint {
	return Hint{Format: FormatGadget, Date: date}
}

// ParseError reports a timestamp that matched no known pattern.
type ParseError struct {
	Raw    string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s timestamp %q: %v", e.Format, e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s timestamp %q: no recognized pattern", e.Format, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

var zonedLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalizer converts raw timestamps into UTC instants.
type Normalizer struct {
	// Offset is local time minus UTC for the naive local collector.
	Offset time.Duration
}

// New returns a Normalizer for the given local clock offset.
func New(offset time.Duration) Normalizer {
	return Normalizer{Offset: offset}
}

// Normalize parses raw according to hint. The result is always UTC and
// truncated to the millisecond, so equal inputs give equal instants.
func (n Normalizer) Normalize(raw string, hint Hint) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &ParseError{Raw: raw, Format: hint.Format}
	}

	switch hint.Format {
	case FormatISO, FormatLocal:
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return instant(t), nil
			}
		}
		for _, layout := range naiveLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				if hint.Format == FormatLocal {
					t = t.Add(-n.Offset)
				}
				return instant(t), nil
			}
		}
		return time.Time{}, &ParseError{Raw: raw, Format: hint.Format}
	case FormatGadget:
		t, err := parseGadget(hint.Date, raw)
		if err != nil {
			return time.Time{}, &ParseError{Raw: raw, Format: hint.Format, Err: err}
		}
		return instant(t.Add(-n.Offset)), nil
	case FormatStamp:
		t, err := time.Parse("20060102_150405", raw)
		if err != nil {
			return time.Time{}, &ParseError{Raw: raw, Format: hint.Format, Err: err}
		}
		return instant(t.Add(-n.Offset)), nil
	default:
		return time.Time{}, &ParseError{Raw: raw, Format: hint.Format, Err: fmt.Errorf("unsupported format")}
	}
}

func parseGadget(date, tod string) (time.Time, error) {
	day, err := time.Parse("20060102", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date fragment %q: %w", date, err)
	}
	parts := strings.Split(tod, ":")
	if len(parts) != 4 {
		return time.Time{}, fmt.Errorf("want HH:MM:SS:mmm, got %d fields", len(parts))
	}
	limits := [4]int{24, 60, 60, 1000}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, err
		}
		if n < 0 || n >= limits[i] {
			return time.Time{}, fmt.Errorf("field %d out of range: %d", i, n)
		}
		v[i] = n
	}
	return day.Add(time.Duration(v[0])*time.Hour +
		time.Duration(v[1])*time.Minute +
		time.Duration(v[2])*time.Second +
		time.Duration(v[3])*time.Millisecond), nil
}

func instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
