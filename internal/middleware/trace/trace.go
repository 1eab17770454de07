// Package trace tags each request with an id and logs its lifecycle.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"costindex/internal/log"
)

// RequestIDHeader is honoured on requests and always set on responses.
const RequestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type requestIDKey struct{}

type Tracer struct {
	logger    *log.StructuredLogger
	extractIP func(*http.Request) string
}

// NewTracer returns a Tracer. extractIP may be nil.
func NewTracer(logger *log.StructuredLogger, extractIP func(*http.Request) string) *Tracer {
	return &Tracer{logger: logger, extractIP: extractIP}
}

// Wrap assigns the request id before next runs and logs start and completion.
func (t *Tracer) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		var ip string
		if t.extractIP != nil {
			ip = t.extractIP(r)
		}

		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = NewRequestID()
		}
		ctx := WithRequestID(r.Context(), id)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, id)

		t.logger.LogHTTPStart(ctx, r, ip)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		t.logger.LogHTTPEnd(ctx, r, sw.status, time.Since(began).Milliseconds(), ip)
	})
}

// statusWriter records the first status written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status, w.written = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// NewRequestID returns "req_" followed by 16 hex characters.
func NewRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return "req_" + hex.EncodeToString(b[:])
}

func validRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// FromContext returns the request id, or "" outside a traced request.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reads the id assigned by Wrap.
func RequestID(r *http.Request) string {
	return FromContext(r.Context())
}
