package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"costindex/internal/core"
	"costindex/internal/ports"

	_ "modernc.org/sqlite"
)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// timestampLayout is fixed width so that text order matches time order.
// Rows written with RFC3339Nano still parse.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + pragmas

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "db_path", dbPath, "version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return classify(r.db.PingContext(ctx))
}

// CreateBasket implements ports.BasketStore
func (r *SQLiteRepository) CreateBasket(ctx context.Context, b core.Basket) (core.Basket, error) {
	if err := b.Validate(); err != nil {
		return core.Basket{}, err
	}
	id, err := newID()
	if err != nil {
		return core.Basket{}, fmt.Errorf("generate basket id: %w", err)
	}
	b.ID = id
	b.CreatedAt = r.now().UTC()

	err = r.inTx(ctx, func(q *Queries) error {
		if err := q.InsertBasket(ctx, basketRow{
			ID:        b.ID,
			Name:      b.Name,
			CreatedAt: b.CreatedAt.Format(timestampLayout),
		}); err != nil {
			return fmt.Errorf("insert basket: %w", err)
		}
		for i, it := range b.Items {
			if err := q.InsertBasketItem(ctx, basketItemRow{
				BasketID: b.ID,
				Position: int64(i),
				Category: it.Category,
				Weight:   it.Weight,
				SeriesID: it.SeriesID,
			}); err != nil {
				return fmt.Errorf("insert basket item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Basket{}, err
	}

	slog.InfoContext(ctx, "Basket saved to SQLite",
		"id", b.ID,
		"name", b.Name,
		"items", len(b.Items))

	return b, nil
}

// GetBasket implements ports.BasketStore
func (r *SQLiteRepository) GetBasket(ctx context.Context, id string) (core.Basket, error) {
	row, err := r.queries.GetBasket(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Basket{}, ports.ErrBasketNotFound
	}
	if err != nil {
		return core.Basket{}, fmt.Errorf("get basket %s: %w", id, classify(err))
	}
	return r.loadBasket(ctx, row)
}

// ListBaskets implements ports.BasketStore
func (r *SQLiteRepository) ListBaskets(ctx context.Context) ([]core.Basket, error) {
	rows, err := r.queries.ListBaskets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", classify(err))
	}
	out := make([]core.Basket, 0, len(rows))
	for _, row := range rows {
		b, err := r.loadBasket(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *SQLiteRepository) loadBasket(ctx context.Context, row basketRow) (core.Basket, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.Basket{}, fmt.Errorf("parse created_at for basket %s: %w", row.ID, err)
	}
	items, err := r.queries.ListBasketItems(ctx, row.ID)
	if err != nil {
		return core.Basket{}, fmt.Errorf("list items for basket %s: %w", row.ID, classify(err))
	}
	b := core.Basket{
		ID:        row.ID,
		Name:      row.Name,
		CreatedAt: createdAt,
		Items:     make([]core.BasketItem, len(items)),
	}
	for i, it := range items {
		b.Items[i] = core.BasketItem{Category: it.Category, Weight: it.Weight, SeriesID: it.SeriesID}
	}
	return b, nil
}

// UpsertPoints implements ports.SeriesWriter
func (r *SQLiteRepository) UpsertPoints(ctx context.Context, seriesID string, points []core.Point) (int, error) {
	if seriesID == "" {
		return 0, core.ErrEmptySeriesID
	}
	updatedAt := r.now().UTC().Format(timestampLayout)
	err := r.inTx(ctx, func(q *Queries) error {
		for _, p := range points {
			if err := q.UpsertPoint(ctx, seriesID, p.Date.String(), p.Value, updatedAt); err != nil {
				return fmt.Errorf("upsert %s@%s: %w", seriesID, p.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.DebugContext(ctx, "Series points upserted", "series_id", seriesID, "count", len(points))
	return len(points), nil
}

// ListPoints implements ports.SeriesReader
func (r *SQLiteRepository) ListPoints(ctx context.Context, seriesID string) ([]core.Point, error) {
	rows, err := r.queries.ListPoints(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list points for %s: %w", seriesID, classify(err))
	}
	out := make([]core.Point, 0, len(rows))
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", seriesID, err)
		}
		out = append(out, core.Point{Date: d, Value: row.Value})
	}
	return out, nil
}

// SeriesIDs lists the series that have stored points.
func (r *SQLiteRepository) SeriesIDs(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListSeriesIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series ids: %w", classify(err))
	}
	return ids, nil
}

// SeriesRevision implements ports.SeriesRevisioner. It changes whenever a
// point is inserted or rewritten, including by another process.
func (r *SQLiteRepository) SeriesRevision(ctx context.Context) (string, error) {
	count, latest, err := r.queries.SeriesRevision(ctx)
	if err != nil {
		return "", fmt.Errorf("series revision: %w", classify(err))
	}
	return fmt.Sprintf("%d@%s", count, latest), nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(classify(err), fmt.Errorf("rollback: %w", rbErr))
		}
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

func newID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
