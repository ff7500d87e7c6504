// Package risk turns raw target weights into constrained target weights.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"investment-x/internal/domain"
	"investment-x/internal/weights"
)

// ErrInvalidFraction is returned when a limit lies outside [0,1].
var ErrInvalidFraction = errors.New("risk limit must be a fraction in [0,1]")

// Manager applies position, sector, size and turnover limits.
// It holds no mutable state and may be shared between concurrent runs.
type Manager struct {
	maxPosition       *float64
	maxSectorExposure *float64
	minPosition       *float64
	maxTurnover       *float64
}

// NewManager validates cfg and returns a Manager. Nil limits are unconstrained.
func NewManager(cfg domain.RiskConfig) (*Manager, error) {
	limits := []struct {
		name string
		v    *float64
	}{
		{"max_position", cfg.MaxPosition},
		{"max_sector_exposure", cfg.MaxSectorExposure},
		{"min_position", cfg.MinPosition},
		{"max_turnover", cfg.MaxTurnover},
	}
	for _, l := range limits {
		if l.v == nil {
			continue
		}
		if math.IsNaN(*l.v) || *l.v < 0 || *l.v > 1 {
			return nil, fmt.Errorf("%s=%v: %w", l.name, *l.v, ErrInvalidFraction)
		}
	}

	return &Manager{
		maxPosition:       copyLimit(cfg.MaxPosition),
		maxSectorExposure: copyLimit(cfg.MaxSectorExposure),
		minPosition:       copyLimit(cfg.MinPosition),
		maxTurnover:       copyLimit(cfg.MaxTurnover),
	}, nil
}

// Unconstrained returns a Manager that only renormalizes.
func Unconstrained() *Manager {
	return &Manager{}
}

func copyLimit(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ApplyConstraints returns the constrained version of target.
// Steps run in a fixed order: position cap, minimum size, sector caps,
// turnover cap, renormalization. current is the live allocation in the same
// key space as target. sectors maps keys to sector labels and may be nil.
//
// Renormalization runs last, so a sector scaled down in step 3 can end above
// its cap when weight elsewhere was removed. Position caps hold after
// renormalization: weight lifted above MaxPosition is moved to assets still
// under it, and stays in cash when every asset is at the cap.
func (m *Manager) ApplyConstraints(target, current weights.Vector, sectors map[string]string) weights.Vector {
	w := target.Clone()

	if m.maxPosition != nil {
		for k, v := range w {
			if v > *m.maxPosition {
				w[k] = *m.maxPosition
			}
		}
	}

	if m.minPosition != nil {
		for k, v := range w {
			if v < *m.minPosition {
				w[k] = 0
			}
		}
	}

	if m.maxSectorExposure != nil && len(sectors) > 0 {
		w = capSectors(w, sectors, *m.maxSectorExposure)
	}

	if m.maxTurnover != nil {
		w = capTurnover(w, current, *m.maxTurnover)
	}

	w = w.Normalize()
	if m.maxPosition != nil {
		w = reclip(w, *m.maxPosition)
	}
	return w
}

// reclip pins weights above limit to limit and spreads the excess over the
// remaining positive weights in proportion to their size. Each pass pins at
// least one more key, so it stops after len(w) passes.
func reclip(w weights.Vector, limit float64) weights.Vector {
	out := w.Clone()
	keys := out.Keys()
	pinned := make(map[string]bool, len(keys))

	for range keys {
		excess := 0.0
		for _, k := range keys {
			if !pinned[k] && out[k] > limit {
				excess += out[k] - limit
				out[k] = limit
				pinned[k] = true
			}
		}
		if excess <= weights.Epsilon {
			break
		}

		free := 0.0
		for _, k := range keys {
			if !pinned[k] && out[k] > 0 {
				free += out[k]
			}
		}
		if free <= 0 {
			break
		}

		scale := (free + excess) / free
		for _, k := range keys {
			if !pinned[k] && out[k] > 0 {
				out[k] *= scale
			}
		}
	}
	return out
}

// capSectors scales every member of an over-limit sector by limit/total.
// The removed weight is not redistributed.
func capSectors(w weights.Vector, sectors map[string]string, limit float64) weights.Vector {
	totals := make(map[string]float64)
	for _, k := range w.Keys() {
		if s, ok := sectors[k]; ok {
			totals[s] += w[k]
		}
	}

	labels := make([]string, 0, len(totals))
	for s := range totals {
		labels = append(labels, s)
	}
	sort.Strings(labels)

	out := w.Clone()
	for _, s := range labels {
		total := totals[s]
		if total <= limit {
			continue
		}
		scale := limit / total
		for k := range out {
			if ks, ok := sectors[k]; ok && ks == s {
				out[k] *= scale
			}
		}
	}
	return out
}

// capTurnover moves only limit/turnover of the way from current to target
// when the full move would exceed limit.
func capTurnover(target, current weights.Vector, limit float64) weights.Vector {
	turnover := weights.L1Distance(target, current)
	if turnover <= limit || turnover == 0 {
		return target
	}

	frac := limit / turnover
	out := make(weights.Vector)
	for _, k := range weights.Union(target, current) {
		out[k] = current[k] + (target[k]-current[k])*frac
	}
	return out
}
