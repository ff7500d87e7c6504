// Package parquetstore keeps daily prices in Parquet files on local disk.
package parquetstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// PriceStore implements storage.PriceStore with one file per code and year:
//
//	<DataDir>/daily/<CODE>/<YYYY>.parquet
type PriceStore struct {
	DataDir string

	mu sync.RWMutex
}

// NewPriceStore creates a PriceStore rooted at dataDir.
func NewPriceStore(dataDir string) *PriceStore {
	return &PriceStore{DataDir: dataDir}
}

// PriceRecord is the Parquet schema for one daily observation.
type PriceRecord struct {
	AssetCode string  `parquet:"asset_code"`
	Date      int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Price     float64 `parquet:"price"`
}

type fileKey struct {
	code string
	year int
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (asset_code, date).
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	groups := make(map[fileKey][]PriceRecord)
	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || !validCode(p.AssetCode) || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		d := domain.DateOnly(p.Date)
		key := p.AssetCode + "|" + d.Format(time.DateOnly)
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}

		k := fileKey{code: p.AssetCode, year: d.Year()}
		groups[k] = append(groups[k], PriceRecord{
			AssetCode: p.AssetCode,
			Date:      d.UnixMilli(),
			Price:     p.Price,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every file before writing any of them
	existing := make(map[fileKey][]PriceRecord, len(groups))
	for k, records := range groups {
		current, err := s.readFile(k)
		if err != nil {
			return err
		}
		have := make(map[int64]struct{}, len(current))
		for _, r := range current {
			have[r.Date] = struct{}{}
		}
		for _, r := range records {
			if _, dup := have[r.Date]; dup {
				return storage.ErrDuplicateKey
			}
		}
		existing[k] = current
	}

	for k, records := range groups {
		merged := append(existing[k], records...)
		sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
		if err := writeParquetFile(s.path(k), merged); err != nil {
			return fmt.Errorf("writing prices for %s/%d: %w", k.code, k.year, err)
		}
	}
	return nil
}

// GetByTimeRange retrieves points for codes within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(_ context.Context, codes []string, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !start.IsZero() {
		start = domain.DateOnly(start)
	}
	if !end.IsZero() {
		end = domain.DateOnly(end)
	}

	seen := make(map[string]struct{}, len(codes))
	var result []*domain.PricePoint
	for _, code := range codes {
		if _, dup := seen[code]; dup || !validCode(code) {
			continue
		}
		seen[code] = struct{}{}

		records, err := s.readCode(code, start, end)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			d := time.UnixMilli(r.Date).UTC()
			if !start.IsZero() && d.Before(start) {
				continue
			}
			if !end.IsZero() && d.After(end) {
				continue
			}
			result = append(result, &domain.PricePoint{AssetCode: code, Date: d, Price: r.Price})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AssetCode != result[j].AssetCode {
			return result[i].AssetCode < result[j].AssetCode
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetDateRange returns the first and last observation dates of code.
func (s *PriceStore) GetDateRange(_ context.Context, code string) (first, last time.Time, err error) {
	if !validCode(code) {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readCode(code, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(records) == 0 {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}

	lo, hi := records[0].Date, records[0].Date
	for _, r := range records[1:] {
		if r.Date < lo {
			lo = r.Date
		}
		if r.Date > hi {
			hi = r.Date
		}
	}
	return time.UnixMilli(lo).UTC(), time.UnixMilli(hi).UTC(), nil
}

// readCode reads every year file of code that can overlap [start, end].
func (s *PriceStore) readCode(code string, start, end time.Time) ([]PriceRecord, error) {
	years, err := s.years(code)
	if err != nil {
		return nil, err
	}

	var out []PriceRecord
	for _, y := range years {
		if !start.IsZero() && y < start.Year() {
			continue
		}
		if !end.IsZero() && y > end.Year() {
			continue
		}
		records, err := s.readFile(fileKey{code: code, year: y})
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// years lists the years with a file for code, ascending.
func (s *PriceStore) years(code string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "daily", code))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list price files for %s: %w", code, err)
	}

	var years []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		y, err := strconv.Atoi(strings.TrimSuffix(name, ".parquet"))
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// readFile returns the records of one file, nil if the file does not exist.
func (s *PriceStore) readFile(k fileKey) ([]PriceRecord, error) {
	path := s.path(k)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	records, err := parquet.ReadFile[PriceRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

func (s *PriceStore) path(k fileKey) string {
	return filepath.Join(s.DataDir, "daily", k.code, fmt.Sprintf("%04d.parquet", k.year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

// validCode rejects codes that cannot be used as a directory name.
func validCode(code string) bool {
	return code != "" && code != "." && code != ".." && !strings.ContainsAny(code, `/\`)
}
