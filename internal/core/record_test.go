package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "1981", want: time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: " 1981.0 ", want: time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2019-07", want: time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC)},
		{in: "2019-07-15", want: time.Date(2019, 7, 15, 0, 0, 0, 0, time.UTC)},
		{in: "", wantErr: true},
		{in: "last year", wantErr: true},
		{in: "1981.5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("expected ErrInvalidDate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
		err    bool
	}{
		{in: "12.5", want: 12.5, wantOK: true},
		{in: "1,234.5", want: 1234.5, wantOK: true},
		{in: "-3", want: -3, wantOK: true},
		{in: "", wantOK: false},
		{in: "NaN", wantOK: false},
		{in: "abc", err: true},
	}
	for _, tt := range tests {
		got, ok, err := ParseValue(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("ParseValue(%q): expected ErrInvalidValue, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseValue(%q) = (%v, %v, %v), want (%v, %v, nil)", tt.in, got, ok, err, tt.want, tt.wantOK)
		}
	}
}

func TestFormatDateLabel(t *testing.T) {
	if got := FormatDateLabel(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)); got != "2001" {
		t.Fatalf("year label: got %q", got)
	}
	if got := FormatDateLabel(time.Date(2001, 3, 4, 0, 0, 0, 0, time.UTC)); got != "2001-03-04" {
		t.Fatalf("day label: got %q", got)
	}
}

func TestRecordValidate(t *testing.T) {
	ok := Record{Normalization: "u", Item: "i", Jurisdiction: "j", Date: time.Unix(0, 0).UTC(), Value: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	bad := ok
	bad.Item = " "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("expected ErrEmptyField, got %v", err)
	}
	bad = ok
	bad.Date = time.Time{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
