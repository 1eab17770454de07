package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"costindex/internal/log"
	"costindex/internal/metrics"
	"costindex/internal/middleware/ratelimit"
	"costindex/internal/middleware/security"
	"costindex/internal/middleware/trace"
	"costindex/internal/ports"
	"costindex/internal/services"
)

// Deps are the collaborators behind the HTTP API. Lister, Pinger and Metrics
// are optional.
type Deps struct {
	Baskets    *services.BasketService
	Dashboards *services.DashboardService
	Series     ports.SeriesReader
	Lister     ports.SeriesLister
	Pinger     ports.Pinger
	Metrics    *metrics.Recorder
	Logger     *log.Logger

	// RateLimit caps POST requests per client per minute; 0 uses the default.
	RateLimit int
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.StructuredLogger
	rateLimiter *ratelimit.Limiter
	ipResolver  *security.IPResolver

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background())
	}

	s := &Server{
		deps:        deps,
		logger:      log.NewStructuredLogger(deps.Logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{Requests: deps.RateLimit, Window: time.Minute}),
		ipResolver:  security.DefaultIPResolver(),
	}

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, deps.Metrics.Instrument(pattern, h))
	}
	limited := s.rateLimiter.Middleware(s.ipResolver.ClientIP, nil)

	handle("GET /healthz", handleHealth)
	handle("GET /readyz", s.handleReady)
	handle("GET /api/baskets", s.handleListBaskets)
	mux.Handle("POST /api/baskets", limited(deps.Metrics.Instrument("POST /api/baskets", http.HandlerFunc(s.handleCreateBasket))))
	handle("GET /api/baskets/{id}", s.handleGetBasket)
	handle("GET /api/cpi", s.handleSeriesPoints)
	handle("GET /api/series", s.handleListSeries)
	handle("GET /api/compute", s.handleCompute)
	handle("GET /ui/chart", s.handleChart)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	tracer := trace.NewTracer(s.logger, s.ipResolver.ClientIP)

	var h http.Handler = mux
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = tracer.Wrap(h)
	h = log.Middleware(deps.Logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
