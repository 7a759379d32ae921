package datawrapper

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Default layouts of Date and DateTime, overridden by the DATE_FORMAT and
// DATETIME_FORMAT environment variables (Go layouts).
const (
	DefaultDateFormat     = time.DateOnly
	DefaultDateTimeFormat = time.RFC3339
)

// DateFormat returns the layout used to encode Date values
func DateFormat() string {
	if f := os.Getenv("DATE_FORMAT"); f != "" {
		return f
	}
	return DefaultDateFormat
}

// DateTimeFormat returns the layout used to encode DateTime values
func DateTimeFormat() string {
	if f := os.Getenv("DATETIME_FORMAT"); f != "" {
		return f
	}
	return DefaultDateTimeFormat
}

// Date is a calendar date column. Declare it with `bun:"...,type:date"`.
// It is encoded in JSON with DateFormat and null when zero.
type Date struct {
	time.Time
}

// NewDate truncates t to its date
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateFormat())
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Format(time.DateOnly), nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(src any) error {
	t, err := scanTime(src, time.DateOnly)
	if err != nil {
		return fmt.Errorf("datawrapper: scan date: %w", err)
	}
	if t.IsZero() {
		d.Time = time.Time{}
		return nil
	}
	*d = NewDate(t)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateFormat()))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	t, err := unmarshalTime(data, DateFormat())
	if err != nil {
		return fmt.Errorf("datawrapper: decode date: %w", err)
	}
	if t.IsZero() {
		d.Time = time.Time{}
		return nil
	}
	*d = NewDate(t)
	return nil
}

// DateTime is a timestamp column. Declare it with `bun:"...,type:timestamptz"`.
// It is encoded in JSON with DateTimeFormat and null when zero.
type DateTime struct {
	time.Time
}

func (d DateTime) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateTimeFormat())
}

// Value implements driver.Valuer
func (d DateTime) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Scan implements sql.Scanner
func (d *DateTime) Scan(src any) error {
	t, err := scanTime(src, time.RFC3339Nano)
	if err != nil {
		return fmt.Errorf("datawrapper: scan datetime: %w", err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler
func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateTimeFormat()))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *DateTime) UnmarshalJSON(data []byte) error {
	t, err := unmarshalTime(data, DateTimeFormat())
	if err != nil {
		return fmt.Errorf("datawrapper: decode datetime: %w", err)
	}
	d.Time = t
	return nil
}

// textLayouts are tried in order when a driver returns time as text
var textLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func scanTime(src any, layout string) (time.Time, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case []byte:
		return parseText(string(v), layout)
	case string:
		return parseText(v, layout)
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", src)
	}
}

func parseText(s, layout string) (time.Time, error) {
	if t, err := time.Parse(layout, s); err == nil {
		return t, nil
	}
	for _, l := range textLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func unmarshalTime(data []byte, layout string) (time.Time, error) {
	if string(data) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}
	return parseText(s, layout)
}
