package fred

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"costindex/internal/core"
	"costindex/internal/ports"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestFetchSeries(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/observations" {
			http.NotFound(w, r)
			return
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"observations":[
			{"date":"2024-01-01","value":"308.417"},
			{"date":"2024-02-01","value":"."},
			{"date":"2024-03-01","value":"312.230"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient("secret", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	pts, err := c.FetchSeries(context.Background(), "CPIAUCSL")
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	want := []core.Point{
		{Date: core.NewDate(2024, 1, 1), Value: 308.417},
		{Date: core.NewDate(2024, 3, 1), Value: 312.230},
	}
	if len(pts) != len(want) {
		t.Fatalf("expected %d points, got %v", len(want), pts)
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], pts[i])
		}
	}

	for k, v := range map[string]string{
		"series_id":  "CPIAUCSL",
		"api_key":    "secret",
		"file_type":  "json",
		"sort_order": "asc",
	} {
		if gotQuery[k] != v {
			t.Errorf("query %s: expected %q, got %q", k, v, gotQuery[k])
		}
	}
}

func TestFetchSeriesErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errorString string
	}{
		{name: "bad status", status: http.StatusBadRequest, body: `{"error_message":"Bad Request"}`, errorString: "400"},
		{name: "bad json", status: http.StatusOK, body: `{"observations":`, errorString: "decode observations"},
		{name: "bad date", status: http.StatusOK, body: `{"observations":[{"date":"01/02/2024","value":"1"}]}`, errorString: "invalid date"},
		{name: "bad value", status: http.StatusOK, body: `{"observations":[{"date":"2024-01-01","value":"abc"}]}`, errorString: "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			_, err := c.FetchSeries(context.Background(), "X")
			if err == nil || !strings.Contains(err.Error(), tt.errorString) {
				t.Fatalf("expected error containing %q, got %v", tt.errorString, err)
			}
		})
	}
}

func TestFetchSeriesMarksTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "unknown series", status: http.StatusBadRequest},
		{name: "bad key", status: http.StatusForbidden},
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusInternalServerError, transient: true},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, _ := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			_, err := c.FetchSeries(context.Background(), "X")
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ports.ErrUpstreamUnavailable); got != tt.transient {
				t.Fatalf("transient = %v, want %v (err %v)", got, tt.transient, err)
			}
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, _ := NewClient("k", WithBaseURL(url))
		if _, err := c.FetchSeries(context.Background(), "X"); !errors.Is(err, ports.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c, _ := NewClient("k", WithBaseURL("http://127.0.0.1:1"))
		_, err := c.FetchSeries(ctx, "X")
		if err == nil || errors.Is(err, ports.ErrUpstreamUnavailable) {
			t.Fatalf("cancellation must not be marked transient, got %v", err)
		}
	})
}

func TestFetchSeriesEmptyID(t *testing.T) {
	c, _ := NewClient("k")
	if _, err := c.FetchSeries(context.Background(), ""); !errors.Is(err, ErrEmptySeriesID) {
		t.Fatalf("expected ErrEmptySeriesID, got %v", err)
	}
}
