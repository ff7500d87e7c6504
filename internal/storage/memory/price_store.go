package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (asset_code, date)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// priceKey generates a unique key for a price point.
func priceKey(code string, date time.Time) string {
	return fmt.Sprintf("%s|%s", code, date.Format(time.DateOnly))
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
// Dates are truncated to UTC midnight.
func (s *PriceStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.AssetCode == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.AssetCode, domain.DateOnly(p.Date))

		// Check existing data
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		// Check intra-batch duplicate
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		pointCopy := *p
		pointCopy.Date = domain.DateOnly(p.Date)
		s.data[priceKey(p.AssetCode, pointCopy.Date)] = &pointCopy
	}

	return nil
}

// GetByTimeRange retrieves points for codes within [start, end] (inclusive).
func (s *PriceStore) GetByTimeRange(_ context.Context, codes []string, start, end time.Time) ([]*domain.PricePoint, error) {
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if _, ok := want[p.AssetCode]; !ok {
			continue
		}
		if !start.IsZero() && p.Date.Before(domain.DateOnly(start)) {
			continue
		}
		if !end.IsZero() && p.Date.After(domain.DateOnly(end)) {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sortPoints(result)
	return result, nil
}

// GetDateRange returns the first and last observation dates of code.
func (s *PriceStore) GetDateRange(_ context.Context, code string) (first, last time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	for _, p := range s.data {
		if p.AssetCode != code {
			continue
		}
		if !found || p.Date.Before(first) {
			first = p.Date
		}
		if !found || p.Date.After(last) {
			last = p.Date
		}
		found = true
	}

	if !found {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first, last, nil
}

func sortPoints(points []*domain.PricePoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].AssetCode != points[j].AssetCode {
			return points[i].AssetCode < points[j].AssetCode
		}
		return points[i].Date.Before(points[j].Date)
	})
}

var _ storage.PriceStore = (*PriceStore)(nil)
