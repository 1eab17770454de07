package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type basketRow struct {
	ID        string
	Name      string
	CreatedAt string
}

type basketItemRow struct {
	BasketID string
	Position int64
	Category string
	Weight   float64
	SeriesID string
}

type pointRow struct {
	Date  string
	Value float64
}

const insertBasket = `INSERT INTO baskets (id, name, created_at) VALUES (?, ?, ?)`

func (q *Queries) InsertBasket(ctx context.Context, b basketRow) error {
	_, err := q.db.ExecContext(ctx, insertBasket, b.ID, b.Name, b.CreatedAt)
	return err
}

const insertBasketItem = `INSERT INTO basket_items (basket_id, position, category, weight, series_id)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertBasketItem(ctx context.Context, it basketItemRow) error {
	_, err := q.db.ExecContext(ctx, insertBasketItem, it.BasketID, it.Position, it.Category, it.Weight, it.SeriesID)
	return err
}

const getBasket = `SELECT id, name, created_at FROM baskets WHERE id = ?`

func (q *Queries) GetBasket(ctx context.Context, id string) (basketRow, error) {
	var b basketRow
	err := q.db.QueryRowContext(ctx, getBasket, id).Scan(&b.ID, &b.Name, &b.CreatedAt)
	return b, err
}

const listBaskets = `SELECT id, name, created_at FROM baskets ORDER BY created_at DESC, id`

func (q *Queries) ListBaskets(ctx context.Context) ([]basketRow, error) {
	rows, err := q.db.QueryContext(ctx, listBaskets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []basketRow
	for rows.Next() {
		var b basketRow
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const listBasketItems = `SELECT basket_id, position, category, weight, series_id
FROM basket_items WHERE basket_id = ? ORDER BY position`

func (q *Queries) ListBasketItems(ctx context.Context, basketID string) ([]basketItemRow, error) {
	rows, err := q.db.QueryContext(ctx, listBasketItems, basketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []basketItemRow
	for rows.Next() {
		var it basketItemRow
		if err := rows.Scan(&it.BasketID, &it.Position, &it.Category, &it.Weight, &it.SeriesID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const upsertPoint = `INSERT INTO series_points (series_id, date, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(series_id, date) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (q *Queries) UpsertPoint(ctx context.Context, seriesID, date string, value float64, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, upsertPoint, seriesID, date, value, updatedAt)
	return err
}

const listPoints = `SELECT date, value FROM series_points WHERE series_id = ? ORDER BY date`

func (q *Queries) ListPoints(ctx context.Context, seriesID string) ([]pointRow, error) {
	rows, err := q.db.QueryContext(ctx, listPoints, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pointRow
	for rows.Next() {
		var p pointRow
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const seriesRevision = `SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM series_points`

func (q *Queries) SeriesRevision(ctx context.Context) (int64, string, error) {
	var (
		count  int64
		latest string
	)
	err := q.db.QueryRowContext(ctx, seriesRevision).Scan(&count, &latest)
	return count, latest, err
}

const listSeriesIDs = `SELECT DISTINCT series_id FROM series_points ORDER BY series_id`

func (q *Queries) ListSeriesIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listSeriesIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
