// Package verification re-executes persisted runs and checks that the
// stored books are reproduced, and checks price coverage before a batch.
package verification

import (
	"fmt"
	"math"

	"investment-x/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, book fields are prefixed with book[i]
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence

	StoredEndValue   float64
	ReplayedEndValue float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	SkippedRuns   int // persisted runs with no matching configuration
	Results       []VerificationResult
}

// CompareRuns compares two runs and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareRuns(stored, replayed *domain.Run) []FieldDivergence {
	var d []FieldDivergence
	diff := func(field string, expected, actual interface{}) {
		d = append(d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.RunID != replayed.RunID {
		diff("RunID", stored.RunID, replayed.RunID)
	}
	if stored.StrategyID != replayed.StrategyID {
		diff("StrategyID", stored.StrategyID, replayed.StrategyID)
	}
	if stored.ScenarioID != replayed.ScenarioID {
		diff("ScenarioID", stored.ScenarioID, replayed.ScenarioID)
	}
	if !floatEquals(stored.Principal, replayed.Principal) {
		diff("Principal", stored.Principal, replayed.Principal)
	}

	if len(stored.Book) != len(replayed.Book) {
		diff("Book.Len", len(stored.Book), len(replayed.Book))
		return d
	}

	for i := range stored.Book {
		s, r := stored.Book[i], replayed.Book[i]
		prefix := fmt.Sprintf("Book[%d].", i)

		if !s.Date.Equal(r.Date) {
			diff(prefix+"Date", s.Date, r.Date)
		}
		if !floatEquals(s.PortfolioValue, r.PortfolioValue) {
			diff(prefix+"PortfolioValue", s.PortfolioValue, r.PortfolioValue)
		}
		if !floatEquals(s.Cash, r.Cash) {
			diff(prefix+"Cash", s.Cash, r.Cash)
		}
		if !floatEquals(s.BenchmarkValue, r.BenchmarkValue) {
			diff(prefix+"BenchmarkValue", s.BenchmarkValue, r.BenchmarkValue)
		}
		if !floatEquals(s.Turnover, r.Turnover) {
			diff(prefix+"Turnover", s.Turnover, r.Turnover)
		}
		if !floatEquals(s.TransactionCost, r.TransactionCost) {
			diff(prefix+"TransactionCost", s.TransactionCost, r.TransactionCost)
		}
		if s.Rebalanced != r.Rebalanced {
			diff(prefix+"Rebalanced", s.Rebalanced, r.Rebalanced)
		}
		if !mapEquals(s.Shares, r.Shares) {
			diff(prefix+"Shares", s.Shares, r.Shares)
		}
		if !mapEquals(s.Weights, r.Weights) {
			diff(prefix+"Weights", s.Weights, r.Weights)
		}
		if !mapEquals(s.TargetWeights, r.TargetWeights) {
			diff(prefix+"TargetWeights", s.TargetWeights, r.TargetWeights)
		}
	}

	return d
}

// floatEquals compares two float64 values with tolerance.
// NaN equals NaN.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}

// mapEquals treats missing keys as zero.
func mapEquals(a, b map[string]float64) bool {
	for k, v := range a {
		if !floatEquals(v, b[k]) {
			return false
		}
	}
	for k, v := range b {
		if _, ok := a[k]; !ok && !floatEquals(v, 0) {
			return false
		}
	}
	return true
}
