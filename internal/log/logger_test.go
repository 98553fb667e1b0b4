package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentDataset, Output: &buf})
	l.Info("loaded", NewFields().WithDataset("http", 3).ToSlice()...)

	out := buf.String()
	for _, want := range []string{"component=dataset", "source=http", "rows=3", "msg=loaded"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	buf.Reset()
	l.WithComponent(ComponentHTTP).Warn("x")
	if !strings.Contains(buf.String(), "component=http") {
		t.Errorf("WithComponent output = %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithSelection("Real dollars", []string{"Debt", "Total revenue"}, []string{"Ontario"}).
		WithError(errors.New("boom")).
		WithError(nil)
	if f[FieldItems] != "Debt|Total revenue" || f[FieldJurisdictions] != "Ontario" {
		t.Errorf("selection fields = %v", f)
	}
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length = %d", len(f.ToSlice()))
	}
}

func TestContextLoggerAndHTTPEnd(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Component: ComponentHTTP, Output: &buf}).With(FieldRequestID, "req-1")

	ctx := NewContext(context.Background(), base)
	r := httptest.NewRequest(http.MethodGet, "/api/chart?unit=x", nil)
	LogHTTPEnd(ctx, FromContext(ctx), r, http.StatusServiceUnavailable, 12, "203.0.113.7")

	out := buf.String()
	for _, want := range []string{"level=ERROR", "request_id=req-1", "status_code=503", "client_ip=203.0.113.7", "path=/api/chart"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("fallback logger = %+v", l)
	}
}
