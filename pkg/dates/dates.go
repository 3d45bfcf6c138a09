// Package dates handles the calendar dates and date-or-timestamp query
// parameters exchanged with the web client.
package dates

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format of a calendar date.
const Layout = "2006-01-02"

// Date is a calendar date stored in a DATE column and rendered as
// "YYYY-MM-DD". Full RFC 3339 timestamps are accepted on input.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(Layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(Layout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, _, err := Parse(s)
	if err != nil {
		return err
	}
	*d = NewDate(t)
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		t, err := time.Parse(Layout, v)
		if err != nil {
			return fmt.Errorf("scan date: %w", err)
		}
		*d = NewDate(t)
		return nil
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

// Parse accepts "YYYY-MM-DD" or RFC 3339. dateOnly reports which form matched.
func Parse(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(Layout, s); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
}

// Range is an optional, inclusive time window from query parameters.
type Range struct {
	From *time.Time
	To   *time.Time
}

// ParseRange parses optional start and end values. A date-only end covers
// that whole day, so the returned To is the last instant before midnight.
func ParseRange(start, end string) (Range, error) {
	var r Range
	if start != "" {
		t, _, err := Parse(start)
		if err != nil {
			return Range{}, err
		}
		r.From = &t
	}
	if end != "" {
		t, dateOnly, err := Parse(end)
		if err != nil {
			return Range{}, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		r.To = &t
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return Range{}, fmt.Errorf("endDate must not be before startDate")
	}
	return r, nil
}
