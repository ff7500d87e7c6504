package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"investment-x/internal/domain"
)

// ErrUnknownFrequency is returned for an unsupported rebalance frequency.
var ErrUnknownFrequency = errors.New("unknown frequency")

// Schedule is the set of bars on which a strategy rebalances.
type Schedule struct {
	bars  map[int]struct{}
	dates []time.Time
}

// IsTradeBar reports whether bar i is a rebalance bar.
func (s Schedule) IsTradeBar(i int) bool {
	_, ok := s.bars[i]
	return ok
}

// Dates returns the rebalance dates in ascending order.
func (s Schedule) Dates() []time.Time {
	return append([]time.Time(nil), s.dates...)
}

// Len returns the number of rebalance dates.
func (s Schedule) Len() int {
	return len(s.dates)
}

// TradeDates groups dates by calendar period and keeps the last date of each
// group. The first date is always included. dates must be ascending.
func TradeDates(dates []time.Time, freq domain.Frequency) (Schedule, error) {
	key, err := periodKey(freq)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{bars: make(map[int]struct{})}
	if len(dates) == 0 {
		return s, nil
	}

	s.bars[0] = struct{}{}
	for i := range dates {
		if i == len(dates)-1 || key(dates[i]) != key(dates[i+1]) {
			s.bars[i] = struct{}{}
		}
	}

	bars := make([]int, 0, len(s.bars))
	for i := range s.bars {
		bars = append(bars, i)
	}
	sort.Ints(bars)
	for _, i := range bars {
		s.dates = append(s.dates, dates[i])
	}
	return s, nil
}

func periodKey(freq domain.Frequency) (func(time.Time) int, error) {
	switch freq {
	case domain.FrequencyDaily:
		return func(t time.Time) int { return t.Year()*1000 + t.YearDay() }, nil
	case domain.FrequencyWeekEnd:
		// ISO weeks run Monday to Sunday
		return func(t time.Time) int {
			y, w := t.ISOWeek()
			return y*100 + w
		}, nil
	case domain.FrequencyMonthEnd:
		return func(t time.Time) int { return t.Year()*100 + int(t.Month()) }, nil
	case domain.FrequencyQuarterEnd:
		return func(t time.Time) int { return t.Year()*10 + (int(t.Month())-1)/3 }, nil
	case domain.FrequencyYearEnd:
		return func(t time.Time) int { return t.Year() }, nil
	default:
		return nil, fmt.Errorf("%q: %w", freq, ErrUnknownFrequency)
	}
}

// PeriodsPerYear infers the compounding frequency from the median gap
// between consecutive dates. Fewer than two dates defaults to daily.
func PeriodsPerYear(dates []time.Time) float64 {
	if len(dates) < 2 {
		return 252
	}

	gaps := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	sort.Float64s(gaps)

	var median float64
	n := len(gaps)
	if n%2 == 1 {
		median = gaps[n/2]
	} else {
		median = (gaps[n/2-1] + gaps[n/2]) / 2
	}

	switch {
	case median <= 4:
		return 252
	case median <= 10:
		return 52
	case median <= 45:
		return 12
	case median <= 135:
		return 4
	default:
		return 1
	}
}
