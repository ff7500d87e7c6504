package storage

import "errors"

// Storage errors shared by every backend. Prices and runs are append-only.
var (
	// ErrNotFound is returned when a run or an asset's history does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run_id or (asset_code, date) already
	// exists. Stored data is never updated in place.
	ErrDuplicateKey = errors.New("duplicate key: stored runs and prices are append-only")

	// ErrInvalidInput is returned for nil records or missing keys.
	ErrInvalidInput = errors.New("invalid input")
)
