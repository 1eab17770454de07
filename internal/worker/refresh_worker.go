package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"costindex/internal/amqp"
	"costindex/internal/core"
	"costindex/internal/metrics"
	"costindex/internal/ports"
	"costindex/internal/services"
)

const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerMessage   = "message"
)

// Fetcher downloads a full observation history for one series.
type Fetcher interface {
	FetchSeries(ctx context.Context, seriesID string) ([]core.Point, error)
}

// DashboardComputer is the part of the dashboard service the worker needs to
// rebuild timelines after new data arrives.
type DashboardComputer interface {
	ComputeForBasket(ctx context.Context, basket core.Basket) (services.Dashboard, error)
	Purge()
}

// TimelineExporter publishes a basket timeline to an external destination.
type TimelineExporter interface {
	ExportTimeline(ctx context.Context, basketName string, timeline []core.TimelinePoint) error
}

type Options struct {
	// Series are always refreshed, in addition to every basket's series.
	Series           []string
	NationalSeriesID string
	Concurrency      int

	Metrics    *metrics.Recorder
	Dashboards DashboardComputer
	// Exporter is only used when Dashboards is set.
	Exporter TimelineExporter
}

// RefreshReport summarises one refresh run.
type RefreshReport struct {
	Points   map[string]int
	Failed   []string
	Duration time.Duration
}

// Succeeded reports how many series were fetched and stored.
func (r RefreshReport) Succeeded() int { return len(r.Points) }

// RefreshWorker downloads series from the upstream provider into storage and
// optionally exports refreshed dashboards.
type RefreshWorker struct {
	fetcher Fetcher
	series  ports.SeriesWriter
	baskets ports.BasketStore
	opts    Options
}

func NewRefreshWorker(fetcher Fetcher, series ports.SeriesWriter, baskets ports.BasketStore, opts Options) *RefreshWorker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.NationalSeriesID == "" {
		opts.NationalSeriesID = core.NationalSeriesID
	}
	return &RefreshWorker{
		fetcher: fetcher,
		series:  series,
		baskets: baskets,
		opts:    opts,
	}
}

// Refresh fetches and stores the given series concurrently. A failing series
// does not stop the others; per-series errors are joined into the returned
// error and listed in the report.
func (w *RefreshWorker) Refresh(ctx context.Context, ids []string, trigger string) (RefreshReport, error) {
	start := time.Now()
	report := RefreshReport{Points: make(map[string]int, len(ids))}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(w.opts.Concurrency)

	for _, id := range dedupe(ids) {
		g.Go(func() error {
			n, err := w.refreshOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, id)
				errs = append(errs, err)
				w.opts.Metrics.RecordRefreshFailure(id)
				return nil
			}
			report.Points[id] = n
			w.opts.Metrics.RecordPointsUpserted(id, n)
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Failed)
	report.Duration = time.Since(start)
	w.opts.Metrics.RecordRefreshRun(trigger, report.Duration)

	slog.InfoContext(ctx, "Series refresh completed",
		"trigger", trigger,
		"series", len(report.Points)+len(report.Failed),
		"succeeded", report.Succeeded(),
		"failed", len(report.Failed),
		"duration_ms", report.Duration.Milliseconds())

	return report, errors.Join(errs...)
}

func (w *RefreshWorker) refreshOne(ctx context.Context, id string) (int, error) {
	points, err := w.fetcher.FetchSeries(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch series", "series_id", id, "error", err)
		return 0, fmt.Errorf("fetch %s: %w", id, err)
	}
	n, err := w.series.UpsertPoints(ctx, id, points)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to store series", "series_id", id, "error", err)
		return 0, fmt.Errorf("store %s: %w", id, err)
	}
	slog.DebugContext(ctx, "Series stored", "series_id", id, "points", n)
	return n, nil
}

// TrackedSeries lists the configured series, every series referenced by a
// stored basket and the national series, without duplicates.
func (w *RefreshWorker) TrackedSeries(ctx context.Context) ([]string, error) {
	ids := slices.Clone(w.opts.Series)
	baskets, err := w.baskets.ListBaskets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	for _, b := range baskets {
		ids = append(ids, b.SeriesIDs()...)
	}
	ids = append(ids, w.opts.NationalSeriesID)
	return dedupe(ids), nil
}

// RefreshAll refreshes every tracked series and then exports dashboards.
func (w *RefreshWorker) RefreshAll(ctx context.Context, trigger string) (RefreshReport, error) {
	ids, err := w.TrackedSeries(ctx)
	if err != nil {
		return RefreshReport{}, err
	}
	return w.refreshAndExport(ctx, ids, trigger)
}

func (w *RefreshWorker) refreshAndExport(ctx context.Context, ids []string, trigger string) (RefreshReport, error) {
	report, err := w.Refresh(ctx, ids, trigger)
	if report.Succeeded() > 0 && w.opts.Dashboards != nil {
		w.opts.Dashboards.Purge()
		if expErr := w.ExportDashboards(ctx); expErr != nil {
			err = errors.Join(err, expErr)
		}
	}
	return report, err
}

// ExportDashboards recomputes each basket's timeline and hands it to the
// exporter. Baskets without enough data are skipped.
func (w *RefreshWorker) ExportDashboards(ctx context.Context) error {
	if w.opts.Dashboards == nil || w.opts.Exporter == nil {
		return nil
	}
	baskets, err := w.baskets.ListBaskets(ctx)
	if err != nil {
		return fmt.Errorf("list baskets: %w", err)
	}

	var errs []error
	for _, b := range baskets {
		d, err := w.opts.Dashboards.ComputeForBasket(ctx, b)
		if errors.Is(err, services.ErrInsufficientData) {
			slog.WarnContext(ctx, "Skipping export, not enough data", "basket_id", b.ID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("compute %s: %w", b.ID, err))
			continue
		}
		if err := w.opts.Exporter.ExportTimeline(ctx, b.Name, d.Timeline); err != nil {
			slog.ErrorContext(ctx, "Failed to export timeline", "basket_id", b.ID, "error", err)
			errs = append(errs, fmt.Errorf("export %s: %w", b.ID, err))
			continue
		}
		slog.InfoContext(ctx, "Timeline exported", "basket_id", b.ID, "points", len(d.Timeline))
	}
	return errors.Join(errs...)
}

// HandleMessage processes a refresh request from AMQP. An empty id list means
// every tracked series. The message is only reported as failed when no series
// could be refreshed, and only marked retryable when a failure was transient.
func (w *RefreshWorker) HandleMessage(ctx context.Context, msg *amqp.SeriesRefreshMessage) error {
	slog.InfoContext(ctx, "Processing refresh message",
		"series", len(msg.SeriesIDs),
		"reason", msg.Reason)

	ids := msg.SeriesIDs
	if len(ids) == 0 {
		var err error
		if ids, err = w.TrackedSeries(ctx); err != nil {
			return markRetryable(err)
		}
	}

	report, err := w.refreshAndExport(ctx, ids, TriggerMessage)
	if err != nil && report.Succeeded() == 0 {
		return markRetryable(err)
	}
	if err != nil {
		slog.WarnContext(ctx, "Refresh message partially processed", "failed", report.Failed, "error", err)
	}
	return nil
}

// Run refreshes all tracked series every interval until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Refresh loop stopped")
			return
		case <-ticker.C:
			if _, err := w.RefreshAll(ctx, TriggerScheduled); err != nil {
				slog.ErrorContext(ctx, "Scheduled refresh finished with errors", "error", err)
			}
		}
	}
}

// markRetryable wraps err with amqp.ErrRetryable when the upstream or the
// store was temporarily unavailable. Unknown series and bad data stay final.
func markRetryable(err error) error {
	if errors.Is(err, ports.ErrUpstreamUnavailable) || errors.Is(err, ports.ErrStorageUnavailable) {
		return fmt.Errorf("%w: %w", amqp.ErrRetryable, err)
	}
	return err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
