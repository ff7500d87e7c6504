package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// CoverageCheck represents one data coverage criterion.
type CoverageCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// CoverageResult contains all checks for one run configuration.
type CoverageResult struct {
	Checks  []CoverageCheck
	AllPass bool
	Errors  []string // per-asset details of failed checks
}

// CheckCoverage reports whether the price store can feed cfg: every asset
// has history, history spans the run window, and each asset has enough
// observations for the strategy lookback. Failing checks are not errors;
// the engine runs on whatever data exists.
func CheckCoverage(ctx context.Context, prices storage.PriceStore, cfg domain.RunConfig) (*CoverageResult, error) {
	result := &CoverageResult{AllPass: true}
	add := func(c CoverageCheck, errs []string) {
		result.Checks = append(result.Checks, c)
		if !c.Pass {
			result.AllPass = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	codes := cfg.Universe.Codes()
	sort.Strings(codes)

	type span struct{ first, last time.Time }
	spans := make(map[string]span, len(codes))
	var missing []string
	for _, code := range codes {
		first, last, err := prices.GetDateRange(ctx, code)
		if errors.Is(err, storage.ErrNotFound) {
			missing = append(missing, code)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("date range %s: %w", code, err)
		}
		spans[code] = span{first: first, last: last}
	}

	// Check 1: every asset has price history
	var errs []string
	for _, code := range missing {
		errs = append(errs, fmt.Sprintf("%s: no price history", code))
	}
	add(CoverageCheck{
		Name:      "Assets with price history",
		Threshold: fmt.Sprintf("%d of %d", len(codes), len(codes)),
		Actual:    fmt.Sprintf("%d of %d", len(spans), len(codes)),
		Pass:      len(missing) == 0,
	}, errs)

	// Check 2: history starts on or before the run start
	if !cfg.Start.IsZero() {
		errs = nil
		for _, code := range codes {
			s, ok := spans[code]
			if ok && s.first.After(domain.DateOnly(cfg.Start)) {
				errs = append(errs, fmt.Sprintf("%s: history starts %s", code, s.first.Format("2006-01-02")))
			}
		}
		add(CoverageCheck{
			Name:      "History covers run start",
			Threshold: "<= " + cfg.Start.Format("2006-01-02"),
			Actual:    fmt.Sprintf("%d late assets", len(errs)),
			Pass:      len(errs) == 0,
		}, errs)
	}

	// Check 3: history reaches the run end
	if !cfg.End.IsZero() {
		errs = nil
		for _, code := range codes {
			s, ok := spans[code]
			if ok && s.last.Before(domain.DateOnly(cfg.End)) {
				errs = append(errs, fmt.Sprintf("%s: history ends %s", code, s.last.Format("2006-01-02")))
			}
		}
		add(CoverageCheck{
			Name:      "History covers run end",
			Threshold: ">= " + cfg.End.Format("2006-01-02"),
			Actual:    fmt.Sprintf("%d short assets", len(errs)),
			Pass:      len(errs) == 0,
		}, errs)
	}

	// Check 4: enough observations in the window for the lookback
	if cfg.Strategy.Lookback != nil {
		need := *cfg.Strategy.Lookback + 1
		points, err := prices.GetByTimeRange(ctx, codes, cfg.Start, cfg.End)
		if err != nil {
			return nil, fmt.Errorf("load prices: %w", err)
		}
		counts := make(map[string]int, len(codes))
		for _, p := range points {
			counts[p.AssetCode]++
		}

		errs = nil
		minCount := -1
		for _, code := range codes {
			n := counts[code]
			if minCount < 0 || n < minCount {
				minCount = n
			}
			if n < need {
				errs = append(errs, fmt.Sprintf("%s: %d observations", code, n))
			}
		}
		if minCount < 0 {
			minCount = 0
		}
		add(CoverageCheck{
			Name:      "Observations for lookback",
			Threshold: fmt.Sprintf(">= %d per asset", need),
			Actual:    fmt.Sprintf("min %d", minCount),
			Pass:      len(errs) == 0,
		}, errs)
	}

	return result, nil
}

// String renders the checks one per line.
func (r *CoverageResult) String() string {
	var b strings.Builder
	for _, c := range r.Checks {
		status := "PASS"
		if !c.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s (want %s)\n", status, c.Name, c.Actual, c.Threshold)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  - %s\n", e)
	}
	return b.String()
}
