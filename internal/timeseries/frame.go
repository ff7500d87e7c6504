// Package timeseries aligns per-asset price series onto a common date index.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"investment-x/internal/domain"
)

// Errors returned by frame construction and lookups.
var (
	ErrNoPriceData     = errors.New("no price data available")
	ErrLengthMismatch  = errors.New("column length does not match date index")
	ErrUnsortedDates   = errors.New("dates must be strictly ascending")
	ErrUnknownCode     = errors.New("unknown asset code")
	ErrIndexOutOfRange = errors.New("bar index out of range")
)

// Frame is an ascending, date-indexed price matrix.
// A NaN cell means no price is known for that code on that bar.
type Frame struct {
	dates   []time.Time
	codes   []string
	columns map[string][]float64
}

// NewFrame builds a frame from pre-aligned columns.
// Columns are copied; codes are sorted.
func NewFrame(dates []time.Time, columns map[string][]float64) (*Frame, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("bar %d (%s): %w", i, dates[i].Format(time.DateOnly), ErrUnsortedDates)
		}
	}

	f := &Frame{
		dates:   append([]time.Time(nil), dates...),
		columns: make(map[string][]float64, len(columns)),
	}
	for code, col := range columns {
		if len(col) != len(dates) {
			return nil, fmt.Errorf("%s has %d values for %d dates: %w", code, len(col), len(dates), ErrLengthMismatch)
		}
		f.columns[code] = append([]float64(nil), col...)
		f.codes = append(f.codes, code)
	}
	sort.Strings(f.codes)
	return f, nil
}

// Align merges raw per-code observations into a frame.
// The index is the union of observation dates inside [start, end] (zero bounds
// are open). Each column is forward-filled; bars before a code's first
// observation stay NaN. Duplicate dates keep the last observation.
// Codes in codes with no observations get an all-NaN column.
func Align(codes []string, points []domain.PricePoint, start, end time.Time) *Frame {
	byCode := make(map[string]map[time.Time]float64, len(codes))
	for _, c := range codes {
		byCode[c] = make(map[time.Time]float64)
	}

	dateSet := make(map[time.Time]struct{})
	for _, p := range points {
		obs, ok := byCode[p.AssetCode]
		if !ok {
			continue
		}
		d := domain.DateOnly(p.Date)
		if !start.IsZero() && d.Before(domain.DateOnly(start)) {
			continue
		}
		if !end.IsZero() && d.After(domain.DateOnly(end)) {
			continue
		}
		obs[d] = p.Price
		dateSet[d] = struct{}{}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	f := &Frame{
		dates:   dates,
		columns: make(map[string][]float64, len(byCode)),
	}
	for code, obs := range byCode {
		col := make([]float64, len(dates))
		last := math.NaN()
		for i, d := range dates {
			if px, ok := obs[d]; ok {
				last = px
			}
			col[i] = last
		}
		f.columns[code] = col
		f.codes = append(f.codes, code)
	}
	sort.Strings(f.codes)
	return f
}

// Len returns the number of bars.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.dates)
}

// Empty reports whether the frame has no bars or no columns.
func (f *Frame) Empty() bool {
	return f.Len() == 0 || len(f.codes) == 0
}

// Dates returns a copy of the date index.
func (f *Frame) Dates() []time.Time {
	return append([]time.Time(nil), f.dates...)
}

// Date returns the date of bar i.
func (f *Frame) Date(i int) time.Time {
	return f.dates[i]
}

// Codes returns the sorted asset codes.
func (f *Frame) Codes() []string {
	return append([]string(nil), f.codes...)
}

// Has reports whether code has a column.
func (f *Frame) Has(code string) bool {
	_, ok := f.columns[code]
	return ok
}

// Price returns the price of code at bar i, NaN if unknown.
func (f *Frame) Price(code string, i int) float64 {
	col, ok := f.columns[code]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Row returns the finite, positive prices of bar i by code.
func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.codes))
	for _, c := range f.codes {
		px := f.columns[c][i]
		if px > 0 && !math.IsInf(px, 0) {
			row[c] = px
		}
	}
	return row
}

// Window returns up to n prices of code ending at bar i inclusive.
// The result is shorter than n near the start of the frame.
func (f *Frame) Window(code string, i, n int) ([]float64, error) {
	col, ok := f.columns[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", code, ErrUnknownCode)
	}
	if i < 0 || i >= len(col) {
		return nil, fmt.Errorf("bar %d of %d: %w", i, len(col), ErrIndexOutOfRange)
	}
	from := i - n + 1
	if from < 0 {
		from = 0
	}
	return append([]float64(nil), col[from:i+1]...), nil
}

// Returns returns simple periodic returns of code aligned to the index.
// Element 0, and any bar without two valid prices, is NaN.
func (f *Frame) Returns(code string) []float64 {
	col := f.columns[code]
	out := make([]float64, len(col))
	for i := range col {
		if i == 0 || !(col[i-1] > 0) || math.IsNaN(col[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = col[i]/col[i-1] - 1
	}
	return out
}

// PriceAt returns the price of code at or before target.
// Returns ErrNoPriceData if no price is known by then.
func (f *Frame) PriceAt(code string, target time.Time) (float64, error) {
	col, ok := f.columns[code]
	if !ok {
		return 0, fmt.Errorf("%s: %w", code, ErrUnknownCode)
	}

	// Find the last bar at or before target
	i := sort.Search(len(f.dates), func(i int) bool { return f.dates[i].After(target) }) - 1
	for ; i >= 0; i-- {
		if !math.IsNaN(col[i]) {
			return col[i], nil
		}
	}
	return 0, ErrNoPriceData
}
