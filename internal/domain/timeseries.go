package domain

import "time"

// PricePoint is one observation from the external price provider.
// Stored in the ClickHouse price_history table or per-year Parquet files.
type PricePoint struct {
	AssetCode string    // asset identifier used by the provider
	Date      time.Time // observation date (UTC midnight)
	Price     float64   // close / adjusted close
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
