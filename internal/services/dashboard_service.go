package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"costindex/internal/cache"
	"costindex/internal/core"
	"costindex/internal/inflation"
	"costindex/internal/metrics"
	"costindex/internal/ports"
)

// ErrInsufficientData is returned when the stored series cannot produce a
// dashboard, e.g. the national series was never downloaded.
var ErrInsufficientData = errors.New("insufficient data")

const loadConcurrency = 4

type (
	// KPIs are the latest growth figures; undefined ratios encode as null.
	KPIs struct {
		PersonalYoY inflation.Ratio `json:"personalYoY"`
		PersonalMoM inflation.Ratio `json:"personalMoM"`
		NationalYoY inflation.Ratio `json:"nationalYoY"`
		NationalMoM inflation.Ratio `json:"nationalMoM"`
	}

	Dashboard struct {
		Basket     core.Basket              `json:"basket"`
		Timeline   []core.TimelinePoint     `json:"timeline"`
		KPIs       KPIs                     `json:"kpis"`
		Drivers    []inflation.Contribution `json:"drivers"`
		ComputedAt time.Time                `json:"computedAt"`
	}

	DashboardConfig struct {
		NationalSeriesID string
		// DriversLookback is the number of periods attributed to drivers.
		DriversLookback int
		DriversTopK     int
	}
)

// DefaultDashboardConfig matches a monthly CPI feed.
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		NationalSeriesID: core.NationalSeriesID,
		DriversLookback:  inflation.YearLag,
		DriversTopK:      5,
	}
}

// DashboardService computes personal versus national index dashboards from
// stored series.
type DashboardService struct {
	baskets ports.BasketStore
	series  ports.SeriesReader
	cache   cache.Cache[Dashboard]
	metrics *metrics.Recorder
	cfg     DashboardConfig
	now     func() time.Time
}

// NewDashboardService creates the service. cache and rec may be nil.
func NewDashboardService(baskets ports.BasketStore, series ports.SeriesReader, c cache.Cache[Dashboard], rec *metrics.Recorder, cfg DashboardConfig) *DashboardService {
	return &DashboardService{
		baskets: baskets,
		series:  series,
		cache:   c,
		metrics: rec,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Compute returns the dashboard for a basket, served from cache when fresh.
// When the series store reports revisions, cache entries are keyed by the
// current revision, so points written by another process are picked up on
// the next request instead of after the TTL.
func (s *DashboardService) Compute(ctx context.Context, basketID string) (Dashboard, error) {
	key := basketID
	if s.cache != nil {
		var err error
		if key, err = s.cacheKey(ctx, basketID); err != nil {
			s.metrics.RecordComputation("error")
			return Dashboard{}, err
		}
		d, ok := s.cache.Get(key)
		s.metrics.RecordCacheLookup(ok)
		if ok {
			return d, nil
		}
	}

	basket, err := s.baskets.GetBasket(ctx, basketID)
	if err != nil {
		s.metrics.RecordComputation("not_found")
		return Dashboard{}, err
	}

	d, err := s.ComputeForBasket(ctx, basket)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			s.metrics.RecordComputation("insufficient_data")
		} else {
			s.metrics.RecordComputation("error")
		}
		return Dashboard{}, err
	}
	s.metrics.RecordComputation("ok")

	if s.cache != nil {
		s.cache.Set(key, d)
	}
	return d, nil
}

func (s *DashboardService) cacheKey(ctx context.Context, basketID string) (string, error) {
	rev, ok := s.series.(ports.SeriesRevisioner)
	if !ok {
		return basketID, nil
	}
	r, err := rev.SeriesRevision(ctx)
	if err != nil {
		return "", fmt.Errorf("read series revision: %w", err)
	}
	return basketID + "|" + r, nil
}

// ComputeForBasket builds a dashboard without consulting the cache.
func (s *DashboardService) ComputeForBasket(ctx context.Context, basket core.Basket) (Dashboard, error) {
	raw, err := s.loadSeries(ctx, append(basket.SeriesIDs(), s.cfg.NationalSeriesID))
	if err != nil {
		return Dashboard{}, err
	}

	aligned := inflation.AlignSeries(raw)
	national, ok := aligned[s.cfg.NationalSeriesID]
	if !ok {
		return Dashboard{}, fmt.Errorf("%w: basket %s: national series %s not stored", ErrInsufficientData, basket.ID, s.cfg.NationalSeriesID)
	}
	if !anyStored(aligned, basket.SeriesIDs()) {
		return Dashboard{}, fmt.Errorf("%w: basket %s: no basket series stored", ErrInsufficientData, basket.ID)
	}
	personal := inflation.ComputeWeightedIndex(aligned, basket.Items)
	if personal.Len() == 0 {
		return Dashboard{}, fmt.Errorf("%w: basket %s", ErrInsufficientData, basket.ID)
	}

	timeline := make([]core.TimelinePoint, personal.Len())
	for i, d := range personal.Dates {
		timeline[i] = core.TimelinePoint{
			Date:     d,
			Personal: personal.Values[i],
			National: national.Values[i],
		}
	}

	last := personal.Len() - 1
	contributions := inflation.ComputeCategoryContributions(aligned, basket.Items, s.cfg.DriversLookback)

	slog.DebugContext(ctx, "Dashboard computed",
		"basket_id", basket.ID,
		"points", len(timeline),
		"drivers", len(contributions))

	return Dashboard{
		Basket:   basket,
		Timeline: timeline,
		KPIs: KPIs{
			PersonalYoY: inflation.YoY(personal, last),
			PersonalMoM: inflation.MoM(personal, last),
			NationalYoY: inflation.YoY(national, last),
			NationalMoM: inflation.MoM(national, last),
		},
		Drivers:    inflation.TopContributions(contributions, s.cfg.DriversTopK),
		ComputedAt: s.now().UTC(),
	}, nil
}

// Purge drops all cached dashboards.
func (s *DashboardService) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// anyStored reports whether at least one of ids has aligned data. Without it
// the weighted index would be all zeros on the national calendar.
func anyStored(aligned map[string]inflation.AlignedSeries, ids []string) bool {
	for _, id := range ids {
		if _, ok := aligned[id]; ok {
			return true
		}
	}
	return false
}

func (s *DashboardService) loadSeries(ctx context.Context, ids []string) (inflation.RawSeries, error) {
	var (
		mu  sync.Mutex
		raw = make(inflation.RawSeries, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			points, err := s.series.ListPoints(gctx, id)
			if err != nil {
				return fmt.Errorf("load series %s: %w", id, err)
			}
			mu.Lock()
			raw[id] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raw, nil
}
