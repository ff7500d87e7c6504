// Package portfolio holds the simulated cash and share positions of a run
// and revalues them against market prices.
package portfolio

import (
	"math"
	"sort"

	"investment-x/internal/weights"
)

// Position is a holding in one asset.
// Value and Weight are derived and refreshed on every mark-to-market.
type Position struct {
	Shares float64
	Price  float64 // last known price
	Value  float64
	Weight float64
}

// Update sets Value = Shares*price and Weight = Value/totalValue.
// Weight is 0 when totalValue is not positive.
func (p *Position) Update(price, totalValue float64) {
	p.Price = price
	p.Value = p.Shares * price
	if totalValue > 0 {
		p.Weight = p.Value / totalValue
	} else {
		p.Weight = 0
	}
}

// Portfolio is cash plus a set of positions keyed by asset code.
type Portfolio struct {
	Cash      float64
	Positions map[string]*Position
}

// New creates an all-cash portfolio.
func New(cash float64) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// ValidPrice reports whether p can be used to value or trade an asset.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// codes returns held asset codes sorted ascending.
func (pf *Portfolio) codes() []string {
	codes := make([]string, 0, len(pf.Positions))
	for c := range pf.Positions {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// MarkToMarket revalues every position.
// Assets present in prices take the new price; others keep their last known
// price. Invested value is computed from the fresh prices before any weight is
// updated so that positions opened on this bar get a correct weight.
func (pf *Portfolio) MarkToMarket(prices map[string]float64) {
	codes := pf.codes()

	for _, c := range codes {
		if px, ok := prices[c]; ok && ValidPrice(px) {
			pf.Positions[c].Price = px
		}
	}

	invested := 0.0
	for _, c := range codes {
		pos := pf.Positions[c]
		invested += pos.Shares * pos.Price
	}
	total := pf.Cash + invested

	for _, c := range codes {
		pos := pf.Positions[c]
		pos.Update(pos.Price, total)
	}
}

// InvestedValue returns the sum of position values.
func (pf *Portfolio) InvestedValue() float64 {
	sum := 0.0
	for _, c := range pf.codes() {
		sum += pf.Positions[c].Value
	}
	return sum
}

// TotalValue returns cash plus invested value.
func (pf *Portfolio) TotalValue() float64 {
	return pf.Cash + pf.InvestedValue()
}

// Weights returns position weights by asset code.
func (pf *Portfolio) Weights() weights.Vector {
	out := make(weights.Vector, len(pf.Positions))
	for c, pos := range pf.Positions {
		out[c] = pos.Weight
	}
	return out
}

// Shares returns share counts by asset code.
func (pf *Portfolio) Shares() map[string]float64 {
	out := make(map[string]float64, len(pf.Positions))
	for c, pos := range pf.Positions {
		out[c] = pos.Shares
	}
	return out
}

// Values returns position values by asset code.
func (pf *Portfolio) Values() map[string]float64 {
	out := make(map[string]float64, len(pf.Positions))
	for c, pos := range pf.Positions {
		out[c] = pos.Value
	}
	return out
}

// Replace swaps the whole position set. Positions are opened at prices and
// valued immediately; call MarkToMarket afterwards to refresh weights.
func (pf *Portfolio) Replace(shares map[string]float64, prices map[string]float64, cash float64) {
	pf.Positions = make(map[string]*Position, len(shares))
	for c, n := range shares {
		pf.Positions[c] = &Position{Shares: n, Price: prices[c], Value: n * prices[c]}
	}
	pf.Cash = cash
}

// Liquidate closes every position and holds cash only.
func (pf *Portfolio) Liquidate(cash float64) {
	pf.Positions = make(map[string]*Position)
	pf.Cash = cash
}

// Clone returns a deep copy.
func (pf *Portfolio) Clone() *Portfolio {
	out := &Portfolio{
		Cash:      pf.Cash,
		Positions: make(map[string]*Position, len(pf.Positions)),
	}
	for c, pos := range pf.Positions {
		cp := *pos
		out.Positions[c] = &cp
	}
	return out
}
