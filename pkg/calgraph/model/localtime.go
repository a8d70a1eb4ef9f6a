package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// LocalTimeLayout is the naive (zone-less) timestamp layout used on the wire
// and in storage, e.g. "2024-01-01T09:00:00".
const LocalTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a wall-clock timestamp without a zone. The zone travels
// separately as an IANA timezone name.
type LocalTime struct {
	time.Time
}

// NewLocalTime drops the location of t, keeping its wall clock.
func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

// ParseLocalTime parses a naive timestamp in LocalTimeLayout.
func ParseLocalTime(s string) (LocalTime, error) {
	t, err := time.Parse(LocalTimeLayout, s)
	if err != nil {
		return LocalTime{}, err
	}
	return LocalTime{t}, nil
}

// String formats the timestamp in LocalTimeLayout.
func (l LocalTime) String() string {
	return l.Time.Format(LocalTimeLayout)
}

// Resolve resolves the wall clock in the named timezone.
func (l LocalTime) Resolve(timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	t := l.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

// Value implements driver.Valuer.
func (l LocalTime) Value() (driver.Value, error) {
	return l.String(), nil
}

// Scan implements sql.Scanner.
func (l *LocalTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return l.parse(v)
	case []byte:
		return l.parse(string(v))
	case time.Time:
		*l = NewLocalTime(v)
		return nil
	case nil:
		*l = LocalTime{}
		return nil
	default:
		return fmt.Errorf("scan local time: unsupported type %T", src)
	}
}

func (l *LocalTime) parse(s string) error {
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return fmt.Errorf("scan local time: %w", err)
	}
	*l = parsed
	return nil
}
