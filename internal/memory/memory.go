package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"costindex/internal/core"
	"costindex/internal/ports"
)

// Store keeps baskets and series points in process memory.
type Store struct {
	mu      sync.Mutex
	baskets []core.Basket
	series  map[string]map[core.Date]float64
	seq     int
	rev     int
	now     func() time.Time
}

func New() *Store {
	return &Store{
		series: make(map[string]map[core.Date]float64),
		now:    time.Now,
	}
}

// NewFromFiles seeds a store from <SERIES_ID>.csv files found in base.
// Each file holds "date,value" rows; a header row, blank lines and lines
// starting with # are skipped. A missing directory yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	matches, _ := filepath.Glob(filepath.Join(base, "*.csv"))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		points, err := readPoints(path)
		if err != nil {
			slog.Warn("Skipping seed file", "path", path, "error", err)
			continue
		}
		_, _ = s.UpsertPoints(context.Background(), id, points)
	}
	return s
}

// CreateBasket stores a copy of b with a synthetic id.
func (s *Store) CreateBasket(_ context.Context, b core.Basket) (core.Basket, error) {
	if err := b.Validate(); err != nil {
		return core.Basket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	b.ID = fmt.Sprintf("mem-%d", s.seq)
	b.CreatedAt = s.now().UTC()
	b.Items = slices.Clone(b.Items)
	s.baskets = append(s.baskets, b)
	return cloneBasket(b), nil
}

func (s *Store) GetBasket(_ context.Context, id string) (core.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.baskets {
		if b.ID == id {
			return cloneBasket(b), nil
		}
	}
	return core.Basket{}, ports.ErrBasketNotFound
}

// ListBaskets returns baskets newest first.
func (s *Store) ListBaskets(_ context.Context) ([]core.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Basket, 0, len(s.baskets))
	for i := len(s.baskets) - 1; i >= 0; i-- {
		out = append(out, cloneBasket(s.baskets[i]))
	}
	slices.SortStableFunc(out, func(a, b core.Basket) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// UpsertPoints replaces any existing value at the same date.
func (s *Store) UpsertPoints(_ context.Context, seriesID string, points []core.Point) (int, error) {
	if strings.TrimSpace(seriesID) == "" {
		return 0, core.ErrEmptySeriesID
	}
	if len(points) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	byDate, ok := s.series[seriesID]
	if !ok {
		byDate = make(map[core.Date]float64, len(points))
		s.series[seriesID] = byDate
	}
	for _, p := range points {
		byDate[p.Date.Normalize()] = p.Value
	}
	return len(points), nil
}

func (s *Store) ListPoints(_ context.Context, seriesID string) ([]core.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.series[seriesID]
	out := make([]core.Point, 0, len(byDate))
	for d, v := range byDate {
		out = append(out, core.Point{Date: d, Value: v})
	}
	slices.SortFunc(out, func(a, b core.Point) int {
		return a.Date.Compare(b.Date)
	})
	return out, nil
}

// SeriesIDs lists the series that have stored points.
func (s *Store) SeriesIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// SeriesRevision counts upserts that stored at least one point.
func (s *Store) SeriesRevision(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.rev), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneBasket(b core.Basket) core.Basket {
	b.Items = slices.Clone(b.Items)
	return b
}

func readPoints(path string) ([]core.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []core.Point
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(rec) < 2 {
			continue
		}
		d, err := core.ParseDate(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, rec[1])
		}
		out = append(out, core.Point{Date: d, Value: v})
	}
	return out, nil
}
