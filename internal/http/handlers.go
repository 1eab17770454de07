package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"costindex/internal/core"
	"costindex/internal/log"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 when the store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			s.logger.LogError(r.Context(), "Readiness check failed", err, log.ComponentStorage, log.OpRead, nil)
			ServiceUnavailableError("storage unavailable").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListBaskets(w http.ResponseWriter, r *http.Request) {
	baskets, err := s.deps.Baskets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.ComponentBasket, log.OpList)
		return
	}
	if baskets == nil {
		baskets = []core.Basket{}
	}
	NewResponse().JSON(baskets).Write(w)
}

func (s *Server) handleCreateBasket(w http.ResponseWriter, r *http.Request) {
	basket, err := ParseBasketRequest(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	created, err := s.deps.Baskets.Create(r.Context(), basket)
	if err != nil {
		s.writeError(w, r, err, log.ComponentBasket, log.OpCreate)
		return
	}

	s.logger.LogBasketCreated(r.Context(), created.ID, created.Name, len(created.Items))
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/baskets/"+created.ID).
		JSON(created).
		Write(w)
}

func (s *Server) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	basket, err := s.deps.Baskets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, log.ComponentBasket, log.OpRead)
		return
	}
	NewResponse().JSON(basket).Write(w)
}

// handleSeriesPoints serves stored observations for one series.
func (s *Server) handleSeriesPoints(w http.ResponseWriter, r *http.Request) {
	seriesID, err := RequiredQuery(r, "seriesId")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	points, err := s.deps.Series.ListPoints(r.Context(), seriesID)
	if err != nil {
		s.writeError(w, r, err, log.ComponentStorage, log.OpRead)
		return
	}
	if points == nil {
		points = []core.Point{}
	}
	NewResponse().JSON(points).Write(w)
}

type seriesEntry struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Stored bool   `json:"stored"`
}

// handleListSeries lists the catalogue followed by any other stored series.
func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	var stored []string
	if s.deps.Lister != nil {
		ids, err := s.deps.Lister.SeriesIDs(r.Context())
		if err != nil {
			s.writeError(w, r, err, log.ComponentStorage, log.OpList)
			return
		}
		stored = ids
	}

	out := make([]seriesEntry, 0, len(core.SeriesCatalog)+len(stored))
	for _, info := range core.SeriesCatalog {
		out = append(out, seriesEntry{ID: info.ID, Label: info.Label, Stored: slices.Contains(stored, info.ID)})
	}
	for _, id := range stored {
		if _, ok := core.LookupSeries(id); !ok {
			out = append(out, seriesEntry{ID: id, Label: id, Stored: true})
		}
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	basketID, err := RequiredQuery(r, "basketId")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.deps.Dashboards.Compute(r.Context(), basketID)
	if err != nil {
		s.writeError(w, r, err, log.ComponentDashboard, log.OpCompute)
		return
	}
	NewResponse().JSON(d).Write(w)
}
