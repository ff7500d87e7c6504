package timeseries

import (
	"errors"
	"testing"
	"time"

	"investment-x/internal/domain"
)

func businessDays(from, to string) []time.Time {
	var out []time.Time
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func formatDates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}

func TestTradeDates(t *testing.T) {
	dates := businessDays("2024-01-10", "2024-07-15")

	tests := []struct {
		freq  domain.Frequency
		first []string
		count int
	}{
		{domain.FrequencyMonthEnd, []string{"2024-01-10", "2024-01-31", "2024-02-29", "2024-03-29"}, 8},
		{domain.FrequencyQuarterEnd, []string{"2024-01-10", "2024-03-29", "2024-06-28", "2024-07-15"}, 4},
		{domain.FrequencyYearEnd, []string{"2024-01-10", "2024-07-15"}, 2},
		{domain.FrequencyWeekEnd, []string{"2024-01-10", "2024-01-12", "2024-01-19"}, 29},
		{domain.FrequencyDaily, []string{"2024-01-10", "2024-01-11"}, len(dates)},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			s, err := TradeDates(dates, tt.freq)
			if err != nil {
				t.Fatalf("TradeDates failed: %v", err)
			}

			got := formatDates(s.Dates())
			if len(got) != tt.count {
				t.Fatalf("expected %d trade dates, got %d: %v", tt.count, len(got), got)
			}
			for i, want := range tt.first {
				if got[i] != want {
					t.Errorf("trade date %d: expected %s, got %s", i, want, got[i])
				}
			}
			if !s.IsTradeBar(0) {
				t.Error("first bar must always be a trade bar")
			}
		})
	}
}

func TestTradeDates_UnknownFrequency(t *testing.T) {
	_, err := TradeDates(businessDays("2024-01-01", "2024-01-31"), domain.Frequency("hourly"))
	if !errors.Is(err, ErrUnknownFrequency) {
		t.Errorf("expected ErrUnknownFrequency, got %v", err)
	}
}

func TestTradeDates_Empty(t *testing.T) {
	s, err := TradeDates(nil, domain.FrequencyMonthEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 || s.IsTradeBar(0) {
		t.Error("empty index must produce an empty schedule")
	}
}

func TestPeriodsPerYear(t *testing.T) {
	monthly := []time.Time{day("2024-01-31"), day("2024-02-29"), day("2024-03-31"), day("2024-04-30")}
	weekly := []time.Time{day("2024-01-05"), day("2024-01-12"), day("2024-01-19")}
	quarterly := []time.Time{day("2024-03-31"), day("2024-06-30"), day("2024-09-30")}
	yearly := []time.Time{day("2022-12-31"), day("2023-12-31"), day("2024-12-31")}

	tests := []struct {
		name  string
		dates []time.Time
		want  float64
	}{
		{"daily", businessDays("2024-01-01", "2024-03-01"), 252},
		{"weekly", weekly, 52},
		{"monthly", monthly, 12},
		{"quarterly", quarterly, 4},
		{"yearly", yearly, 1},
		{"single date", monthly[:1], 252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodsPerYear(tt.dates); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
