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

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, Format: "json"}).WithComponent(ComponentWorker)
	l.Info("refreshed", FieldSeriesID, "CPIAUCSL")

	out := buf.String()
	if !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"series_id":"CPIAUCSL"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
	if strings.Count(out, `"component"`) != 1 {
		t.Fatalf("component logged more than once: %s", out)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	var got *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil || !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request logger missing request id: %s", buf.String())
	}

	if l := FromContext(context.Background()); l.Component() != ComponentApp {
		t.Fatalf("fallback logger component = %q", l.Component())
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Level: slog.LevelDebug}))
	r := httptest.NewRequest(http.MethodGet, "/api/compute?basketId=x", nil)

	sl.LogHTTPEnd(context.Background(), r, 503, 12, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("expected error level for 5xx: %s", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "compute failed", errors.New("boom"), ComponentDashboard, OpCompute, nil)
	if !strings.Contains(buf.String(), "error=boom") || !strings.Contains(buf.String(), "component=dashboard") {
		t.Fatalf("unexpected error log: %s", buf.String())
	}
}

func TestLogFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().
		WithOperation(OpCreate).
		WithBasket("b1", "groceries", 2).
		WithError(errors.New("boom")).
		WithError(nil).
		ToSlice()

	want := []any{
		FieldBasketID, "b1",
		FieldBasketName, "groceries",
		FieldError, "boom",
		FieldItems, 2,
		FieldOperation, OpCreate,
	}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice()[%d] = %v, want %v (full %v)", i, got[i], want[i], got)
		}
	}
}
