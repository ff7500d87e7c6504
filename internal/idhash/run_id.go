package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy_id|scenario_id|start|end|created_at_ns)
// Dates are formatted YYYY-MM-DD, empty when zero.
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeRunID(
	strategyID string,
	scenarioID string,
	start time.Time,
	end time.Time,
	createdAt time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		strategyID,
		scenarioID,
		formatDate(start),
		formatDate(end),
		createdAt.UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
