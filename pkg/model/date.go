package model

import (
	"fmt"
	"time"

	"github.com/ethpandaops/angles-client-go/pkg/canonical"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day. It serializes as
// YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Compile-time interface check.
var _ canonical.Timestamp = Date{}

// NewDate creates a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()

	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}

	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// ISO8601 renders the date as YYYY-MM-DD.
func (d Date) ISO8601() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// String implements fmt.Stringer.
func (d Date) String() string {
	return d.ISO8601()
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.ISO8601()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}
