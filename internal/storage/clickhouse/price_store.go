package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_code, date).
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		code string
		date time.Time
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.AssetCode == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{p.AssetCode, domain.DateOnly(p.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for k := range seen {
		exists, err := s.exists(ctx, k.code, k.date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (asset_code, date, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.AssetCode, domain.DateOnly(p.Date), p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points for codes within [start, end] (inclusive).
// Codes are queried one at a time and returned in asset_code order.
func (s *PriceStore) GetByTimeRange(ctx context.Context, codes []string, start, end time.Time) ([]*domain.PricePoint, error) {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)

	var result []*domain.PricePoint
	prev := ""
	for i, code := range sorted {
		if i > 0 && code == prev {
			continue
		}
		prev = code

		points, err := s.getByCode(ctx, code, start, end)
		if err != nil {
			return nil, err
		}
		result = append(result, points...)
	}

	return result, nil
}

func (s *PriceStore) getByCode(ctx context.Context, code string, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset_code, date, price
		FROM price_history FINAL
		WHERE asset_code = ?`
	args := []interface{}{code}

	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, domain.DateOnly(start))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, domain.DateOnly(end))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetDateRange returns the first and last observation dates of code.
func (s *PriceStore) GetDateRange(ctx context.Context, code string) (first, last time.Time, err error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `
		SELECT count(), min(date), max(date)
		FROM price_history
		WHERE asset_code = ?
	`, code)
	if err := row.Scan(&count, &first, &last); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("query date range: %w", err)
	}
	if count == 0 {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first.UTC(), last.UTC(), nil
}

func (s *PriceStore) exists(ctx context.Context, code string, date time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM price_history
		WHERE asset_code = ? AND date = ?
	`, code, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var result []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.AssetCode, &p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Date = domain.DateOnly(p.Date.UTC())
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
