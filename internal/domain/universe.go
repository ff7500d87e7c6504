package domain

import (
	"errors"
	"fmt"
	"sort"

	"investment-x/internal/weights"
)

// Universe errors
var (
	ErrDuplicateAssetName = errors.New("duplicate asset name in universe")
	ErrEmptyAssetCode     = errors.New("asset code is required")
	ErrEmptyAssetName     = errors.New("asset name is required")
)

// Asset is one universe entry.
// Name is the strategy-facing alias, Code is the price identifier.
type Asset struct {
	Name   string
	Code   string
	Weight *float64 // static weight, nil when not supplied
}

// Universe is an ordered, immutable set of assets.
// Built once per run and deep-copied so runs never share it.
type Universe struct {
	assets []Asset
	byName map[string]int
	static weights.Vector
}

// NewUniverse validates assets and builds a Universe.
// If no asset supplies a weight every asset gets 1/n; otherwise
// assets without a weight get 0.
func NewUniverse(assets []Asset) (Universe, error) {
	u := Universe{
		assets: make([]Asset, 0, len(assets)),
		byName: make(map[string]int, len(assets)),
		static: make(weights.Vector, len(assets)),
	}

	anyWeight := false
	for _, a := range assets {
		if a.Name == "" {
			return Universe{}, ErrEmptyAssetName
		}
		if a.Code == "" {
			return Universe{}, fmt.Errorf("%w: %s", ErrEmptyAssetCode, a.Name)
		}
		if _, exists := u.byName[a.Name]; exists {
			return Universe{}, fmt.Errorf("%w: %s", ErrDuplicateAssetName, a.Name)
		}

		entry := Asset{Name: a.Name, Code: a.Code}
		if a.Weight != nil {
			w := *a.Weight
			entry.Weight = &w
			anyWeight = true
		}
		u.byName[a.Name] = len(u.assets)
		u.assets = append(u.assets, entry)
	}

	for _, a := range u.assets {
		switch {
		case !anyWeight:
			u.static[a.Name] = 1.0 / float64(len(u.assets))
		case a.Weight != nil:
			u.static[a.Name] = *a.Weight
		default:
			u.static[a.Name] = 0
		}
	}

	return u, nil
}

// Len returns the number of assets.
func (u Universe) Len() int {
	return len(u.assets)
}

// Assets returns a copy of the universe entries in declaration order.
func (u Universe) Assets() []Asset {
	out := make([]Asset, len(u.assets))
	copy(out, u.assets)
	return out
}

// Names returns asset names in declaration order.
func (u Universe) Names() []string {
	names := make([]string, len(u.assets))
	for i, a := range u.assets {
		names[i] = a.Name
	}
	return names
}

// Codes returns the distinct asset codes in first-seen order.
func (u Universe) Codes() []string {
	seen := make(map[string]struct{}, len(u.assets))
	codes := make([]string, 0, len(u.assets))
	for _, a := range u.assets {
		if _, ok := seen[a.Code]; ok {
			continue
		}
		seen[a.Code] = struct{}{}
		codes = append(codes, a.Code)
	}
	return codes
}

// Has reports whether name is part of the universe.
func (u Universe) Has(name string) bool {
	_, ok := u.byName[name]
	return ok
}

// CodeOf returns the code for an asset name.
func (u Universe) CodeOf(name string) (string, bool) {
	i, ok := u.byName[name]
	if !ok {
		return "", false
	}
	return u.assets[i].Code, true
}

// NamesOf returns every name mapped to code, sorted.
func (u Universe) NamesOf(code string) []string {
	var names []string
	for _, a := range u.assets {
		if a.Code == code {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names
}

// StaticWeights returns the static weight of every asset by name.
func (u Universe) StaticWeights() weights.Vector {
	return u.static.Clone()
}

// ToCodes translates a name-indexed vector into a code-indexed one.
// Names outside the universe are returned in dropped.
// Names sharing a code are grouped by summing their weights.
func (u Universe) ToCodes(byName weights.Vector) (byCode weights.Vector, dropped []string) {
	byCode = make(weights.Vector, len(byName))
	for _, name := range byName.Keys() {
		code, ok := u.CodeOf(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		byCode[code] += byName[name]
	}
	return byCode, dropped
}

// ToNames translates a code-indexed vector into a name-indexed one.
// A code shared by several names is split evenly between them.
// Codes outside the universe are ignored.
func (u Universe) ToNames(byCode weights.Vector) weights.Vector {
	byName := make(weights.Vector, len(u.assets))
	for _, code := range byCode.Keys() {
		names := u.NamesOf(code)
		if len(names) == 0 {
			continue
		}
		share := byCode[code] / float64(len(names))
		for _, name := range names {
			byName[name] += share
		}
	}
	return byName
}
