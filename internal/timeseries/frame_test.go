package timeseries

import (
	"errors"
	"math"
	"testing"
	"time"

	"investment-x/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAlign_ForwardFillsAndKeepsLeadingGaps(t *testing.T) {
	points := []domain.PricePoint{
		{AssetCode: "A", Date: day("2024-01-01"), Price: 10},
		{AssetCode: "A", Date: day("2024-01-03"), Price: 12},
		{AssetCode: "B", Date: day("2024-01-02"), Price: 5},
		{AssetCode: "C", Date: day("2024-01-02"), Price: 99}, // not requested
	}

	f := Align([]string{"A", "B"}, points, time.Time{}, time.Time{})

	if f.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", f.Len())
	}
	if f.Has("C") {
		t.Error("unrequested code must not be aligned")
	}
	if got := f.Price("A", 1); got != 10 {
		t.Errorf("expected forward-filled 10, got %v", got)
	}
	if got := f.Price("B", 0); !math.IsNaN(got) {
		t.Errorf("expected leading NaN for B, got %v", got)
	}
	if got := f.Price("B", 2); got != 5 {
		t.Errorf("expected forward-filled 5, got %v", got)
	}
}

func TestAlign_BoundsAndDuplicates(t *testing.T) {
	points := []domain.PricePoint{
		{AssetCode: "A", Date: day("2024-01-01"), Price: 1},
		{AssetCode: "A", Date: day("2024-01-02"), Price: 2},
		{AssetCode: "A", Date: day("2024-01-02"), Price: 3},
		{AssetCode: "A", Date: day("2024-01-05"), Price: 4},
	}

	f := Align([]string{"A"}, points, day("2024-01-02"), day("2024-01-04"))

	if f.Len() != 1 {
		t.Fatalf("expected 1 bar inside bounds, got %d", f.Len())
	}
	if got := f.Price("A", 0); got != 3 {
		t.Errorf("expected last duplicate to win, got %v", got)
	}
}

func TestAlign_NoData(t *testing.T) {
	f := Align([]string{"A"}, nil, time.Time{}, time.Time{})
	if !f.Empty() {
		t.Error("expected empty frame")
	}
}

func TestNewFrame_Validation(t *testing.T) {
	_, err := NewFrame([]time.Time{day("2024-01-02"), day("2024-01-01")}, nil)
	if !errors.Is(err, ErrUnsortedDates) {
		t.Errorf("expected ErrUnsortedDates, got %v", err)
	}

	_, err = NewFrame([]time.Time{day("2024-01-01")}, map[string][]float64{"A": {1, 2}})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestFrame_RowSkipsInvalidPrices(t *testing.T) {
	f, err := NewFrame([]time.Time{day("2024-01-01")}, map[string][]float64{
		"A": {10},
		"B": {math.NaN()},
		"C": {0},
		"D": {math.Inf(1)},
	})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}

	row := f.Row(0)
	if len(row) != 1 || row["A"] != 10 {
		t.Errorf("expected only A in row, got %v", row)
	}
}

func TestFrame_WindowAndReturns(t *testing.T) {
	f, err := NewFrame(
		[]time.Time{day("2024-01-01"), day("2024-01-02"), day("2024-01-03")},
		map[string][]float64{"A": {100, 110, 99}},
	)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}

	w, err := f.Window("A", 1, 5)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if len(w) != 2 || w[0] != 100 || w[1] != 110 {
		t.Errorf("unexpected window %v", w)
	}

	if _, err := f.Window("Z", 1, 2); !errors.Is(err, ErrUnknownCode) {
		t.Errorf("expected ErrUnknownCode, got %v", err)
	}
	if _, err := f.Window("A", 3, 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	r := f.Returns("A")
	if !math.IsNaN(r[0]) {
		t.Errorf("first return should be NaN, got %v", r[0])
	}
	if math.Abs(r[1]-0.1) > 1e-12 || math.Abs(r[2]-(-0.1)) > 1e-12 {
		t.Errorf("unexpected returns %v", r)
	}
}

func TestFrame_PriceAt(t *testing.T) {
	f, err := NewFrame(
		[]time.Time{day("2024-01-01"), day("2024-01-03"), day("2024-01-05")},
		map[string][]float64{"A": {math.NaN(), 2, 3}},
	)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}

	tests := []struct {
		name    string
		target  time.Time
		want    float64
		wantErr error
	}{
		{"exact match", day("2024-01-03"), 2, nil},
		{"between bars", day("2024-01-04"), 2, nil},
		{"after last", day("2024-02-01"), 3, nil},
		{"only NaN before", day("2024-01-02"), 0, ErrNoPriceData},
		{"before first", day("2023-12-31"), 0, ErrNoPriceData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.PriceAt("A", tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
