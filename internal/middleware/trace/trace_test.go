package trace

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"costindex/internal/log"
)

func newTestTracer(buf *bytes.Buffer) *Tracer {
	cfg := log.DefaultConfig()
	cfg.Level = slog.LevelDebug
	cfg.Output = buf
	logger := log.New(cfg)
	return NewTracer(log.NewStructuredLogger(logger), func(*http.Request) string { return "198.51.100.1" })
}

func TestWrapAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := newTestTracer(&buf).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/baskets/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header %q does not match context id %q", rr.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") || !strings.Contains(out, "status_code=404") {
		t.Fatalf("completion not logged: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Fatalf("4xx should log at warn: %s", out)
	}
}

func TestWrapKeepsValidIncomingID(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := newTestTracer(&buf).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("expected incoming id to be kept, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id\n" {
		t.Fatal("invalid incoming id must be replaced")
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"req_0123abcd", true},
		{"a.b-c_d", true},
		{"has space", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		if got := validRequestID(tt.id); got != tt.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("FromContext on bare context = %q, want empty", got)
	}
	ctx := WithRequestID(context.Background(), "req_1")
	if got := FromContext(ctx); got != "req_1" {
		t.Fatalf("FromContext = %q, want req_1", got)
	}
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if len(a) != len("req_")+16 || !validRequestID(a) {
		t.Fatalf("malformed request id %q", a)
	}
	if a == b {
		t.Fatalf("request ids should differ, both %q", a)
	}
}
