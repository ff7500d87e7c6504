package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment-x/internal/config"
	"investment-x/internal/domain"
	"investment-x/internal/metrics"
)

const pricesCSV = `asset_code,date,price
SPY,2024-01-31,100
SPY,2024-02-29,104
SPY,2024-03-28,101
SPY,2024-04-30,108
AGG,2024-01-31,50
AGG,2024-02-29,50.5
AGG,2024-03-28,51
AGG,2024-04-30,50.8
`

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := `
logging: {level: error, format: json}
storage:
  prices: parquet
  parquet_dir: ` + filepath.Join(dir, "prices") + `
  runs: sqlite
  sqlite_path: ` + filepath.Join(dir, "runs.db") + `
workers: 2
runs:
  - id: balanced
    strategy: {type: STATIC_WEIGHT}
    scenario: optimistic
    principal: 10000
    universe:
      - {name: EQ, code: SPY, weight: 0.6}
      - {name: FI, code: AGG, weight: 0.4}
  - id: balanced
    strategy: {type: STATIC_WEIGHT}
    scenario: pessimistic
    principal: 10000
    universe:
      - {name: EQ, code: SPY, weight: 0.6}
      - {name: FI, code: AGG, weight: 0.4}
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(context.Background())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_LoadRunCompare(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	csvPath := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(pricesCSV), 0o644))

	out, err := execute(t, "load-prices", csvPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "AGG")
	assert.Contains(t, out, "2024-01-31 .. 2024-04-30")

	out, err = execute(t, "run", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var summaries []runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Empty(t, s.Error)
		assert.Equal(t, "balanced", s.StrategyID)
		assert.Equal(t, 4, s.Bars)
		assert.NotEmpty(t, s.RunID)
	}
	assert.Equal(t, domain.ScenarioOptimistic, summaries[0].ScenarioID)
	assert.Zero(t, summaries[0].Strategy.TotalTransactionCosts)
	assert.Positive(t, summaries[1].Strategy.TotalTransactionCosts)

	out, err = execute(t, "verify", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 runs: 2 matched, 0 divergent")

	out, err = execute(t, "verify", summaries[1].RunID, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, summaries[1].RunID+"  OK")

	out, err = execute(t, "check-data", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] Assets with price history: 2 of 2")

	out, err = execute(t, "compare", "balanced", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var summary metrics.StrategySummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.RunCount)
	require.Len(t, summary.Scenarios, 2)
	assert.Equal(t, domain.ScenarioOptimistic, summary.Scenarios[0].ScenarioID)
	require.NotNil(t, summary.CostDrag)
	assert.Positive(t, *summary.CostDrag)
}

func TestCLI_LoadPricesRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	csvPath := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(pricesCSV), 0o644))

	_, err := execute(t, "load-prices", csvPath, "--config", cfgPath)
	require.NoError(t, err)

	_, err = execute(t, "load-prices", csvPath, "--config", cfgPath)
	assert.Error(t, err)
}

func TestCLI_CompareWithoutRuns(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	_, err := execute(t, "compare", "balanced", "--config", cfgPath)
	assert.ErrorIs(t, err, metrics.ErrNoRuns)
}

func TestReadPriceCSV(t *testing.T) {
	points, err := readPriceCSV(strings.NewReader("A,2024-01-02,10.5\nB, 2024-01-03, 7\n"))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "B", points[1].AssetCode)
	assert.Equal(t, 7.0, points[1].Price)

	_, err = readPriceCSV(strings.NewReader("A,01/02/2024,10\n"))
	assert.Error(t, err)

	_, err = readPriceCSV(strings.NewReader("A,2024-01-02\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.Logging{Level: "debug", Format: "json"})
	assert.NoError(t, err)

	_, err = newLogger(config.Logging{Level: "loud", Format: "console"})
	assert.Error(t, err)
}
