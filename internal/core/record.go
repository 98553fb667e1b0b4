package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type (
	// Record is one row of the source dataset.
	Record struct {
		Normalization string // unit convention, e.g. "Real dollars, 2015=100"
		Item          string // financial line item ("fonitem")
		Jurisdiction  string // government full name ("provname")
		Abbreviation  string // government abbreviation ("provabb")
		Date          time.Time
		DateLabel     string  // date as written in the source, used for the x axis
		Value         float64 // NaN when the source cell was blank
	}

	// Jurisdiction pairs a government's full name with its abbreviation.
	Jurisdiction struct {
		Name         string
		Abbreviation string
	}
)

var (
	ErrMissingColumn = errors.New("missing column")
	ErrEmptyDataset  = errors.New("empty dataset")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidValue  = errors.New("invalid value")
	ErrEmptyField    = errors.New("empty field")
)

// Validate checks that every categorical field is set and the value is not
// infinite. A NaN value marks a missing observation and is allowed.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.Normalization) == "":
		return fmt.Errorf("normalization: %w", ErrEmptyField)
	case strings.TrimSpace(r.Item) == "":
		return fmt.Errorf("fonitem: %w", ErrEmptyField)
	case strings.TrimSpace(r.Jurisdiction) == "":
		return fmt.Errorf("provname: %w", ErrEmptyField)
	case r.Date.IsZero():
		return ErrInvalidDate
	case math.IsInf(r.Value, 0):
		return ErrInvalidValue
	}
	return nil
}

// Missing reports whether the row has no observed value.
func (r Record) Missing() bool {
	return math.IsNaN(r.Value)
}

var dateLayouts = []string{
	"2006",
	"2006-01",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
}

// ParseDate accepts a bare year ("1981", "1981.0") or one of the common
// calendar layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Year columns exported from a dataframe sometimes come through as floats.
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && f >= 1 && f <= 9999 {
		return time.Date(int(f), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseValue parses a numeric cell. Thousands separators are tolerated.
// A blank or NaN cell reports ok=false.
func ParseValue(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

// FormatDateLabel renders a date the way the x axis shows it. Whole years
// collapse to "2006".
func FormatDateLabel(t time.Time) string {
	if t.Month() == time.January && t.Day() == 1 && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006")
	}
	return t.Format("2006-01-02")
}
