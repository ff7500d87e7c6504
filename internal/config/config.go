// Package config loads the backtest YAML configuration and converts run
// entries into domain run configurations.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"investment-x/internal/domain"
	"investment-x/internal/weights"
)

// Config errors
var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidValue = errors.New("invalid value")
)

// Price and run backends.
const (
	BackendMemory     = "memory"
	BackendParquet    = "parquet"
	BackendClickhouse = "clickhouse"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
)

const dateLayout = "2006-01-02"

// Config is the top-level backtest configuration.
type Config struct {
	Logging Logging     `yaml:"logging"`
	Storage Storage     `yaml:"storage"`
	Metrics Metrics     `yaml:"metrics"`
	Workers int         `yaml:"workers"`
	Runs    []RunConfig `yaml:"runs"`
}

// Logging configures the zerolog logger.
type Logging struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// Storage selects the price and run backends.
type Storage struct {
	Prices        string `yaml:"prices"` // memory | parquet | clickhouse
	Runs          string `yaml:"runs"`   // memory | sqlite | postgres
	ParquetDir    string `yaml:"parquet_dir"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // database is taken from the path
	PostgresDSN   string `yaml:"postgres_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RunConfig is one backtest entry as written in YAML.
type RunConfig struct {
	ID            string             `yaml:"id"`
	Strategy      StrategyConfig     `yaml:"strategy"`
	Scenario      string             `yaml:"scenario"`
	CommissionBps *float64           `yaml:"commission_bps"` // overrides the scenario
	SlippageBps   *float64           `yaml:"slippage_bps"`
	Lag           *int               `yaml:"lag"`
	Principal     float64            `yaml:"principal"`
	Start         string             `yaml:"start"`
	End           string             `yaml:"end"`
	Frequency     string             `yaml:"frequency"`
	Universe      []AssetConfig      `yaml:"universe"`
	Benchmark     map[string]float64 `yaml:"benchmark"`
	Risk          RiskConfig         `yaml:"risk"`
}

// StrategyConfig selects a built-in strategy.
type StrategyConfig struct {
	Type     string `yaml:"type"`
	Lookback *int   `yaml:"lookback"`
	TopN     *int   `yaml:"top_n"`
}

// AssetConfig is one universe entry.
type AssetConfig struct {
	Name   string   `yaml:"name"`
	Code   string   `yaml:"code"`
	Weight *float64 `yaml:"weight"`
	Sector string   `yaml:"sector"`
}

// RiskConfig holds optional risk limits as fractions.
type RiskConfig struct {
	MaxPosition       *float64 `yaml:"max_position"`
	MaxSectorExposure *float64 `yaml:"max_sector_exposure"`
	MinPosition       *float64 `yaml:"min_position"`
	MaxTurnover       *float64 `yaml:"max_turnover"`
}

// Load reads the YAML configuration at path, applies defaults and
// environment overrides, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Storage.Prices == "" {
		c.Storage.Prices = BackendMemory
	}
	if c.Storage.Runs == "" {
		c.Storage.Runs = BackendMemory
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// applyEnvOverrides replaces storage and logging settings with environment
// variables when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BACKTEST_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("BACKTEST_CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("BACKTEST_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("BACKTEST_PARQUET_DIR"); v != "" {
		cfg.Storage.ParquetDir = v
	}
	if v := os.Getenv("BACKTEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks storage settings and every run entry.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q: %w", c.Logging.Format, ErrInvalidValue)
	}

	switch c.Storage.Prices {
	case BackendMemory:
	case BackendParquet:
		if c.Storage.ParquetDir == "" {
			return fmt.Errorf("storage.parquet_dir: %w", ErrMissingField)
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn: %w", ErrMissingField)
		}
	default:
		return fmt.Errorf("storage.prices %q: %w", c.Storage.Prices, ErrInvalidValue)
	}

	switch c.Storage.Runs {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path: %w", ErrMissingField)
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn: %w", ErrMissingField)
		}
	default:
		return fmt.Errorf("storage.runs %q: %w", c.Storage.Runs, ErrInvalidValue)
	}

	// Runs may share an id; scenarios are compared per id.
	for i := range c.Runs {
		if _, err := c.Runs[i].ToDomain(); err != nil {
			return fmt.Errorf("runs[%d]: %w", i, err)
		}
	}
	return nil
}

// ToDomain converts the entry into a domain.RunConfig. Scenario presets
// supply costs and lag unless overridden.
func (r RunConfig) ToDomain() (domain.RunConfig, error) {
	out := domain.RunConfig{
		StrategyID: r.ID,
		ScenarioID: strings.ToLower(r.Scenario),
		Strategy: domain.StrategyConfig{
			StrategyType: strings.ToUpper(r.Strategy.Type),
			Lookback:     r.Strategy.Lookback,
			TopN:         r.Strategy.TopN,
		},
		Principal: r.Principal,
		Frequency: domain.Frequency(strings.ToLower(r.Frequency)),
		Risk: domain.RiskConfig{
			MaxPosition:       r.Risk.MaxPosition,
			MaxSectorExposure: r.Risk.MaxSectorExposure,
			MinPosition:       r.Risk.MinPosition,
			MaxTurnover:       r.Risk.MaxTurnover,
		},
	}

	if out.Strategy.StrategyType == "" {
		return domain.RunConfig{}, fmt.Errorf("strategy.type: %w", ErrMissingField)
	}
	if out.Frequency == "" {
		out.Frequency = domain.FrequencyMonthEnd
	}
	if !out.Frequency.IsValid() {
		return domain.RunConfig{}, fmt.Errorf("frequency %q: %w", r.Frequency, ErrInvalidValue)
	}
	if r.Principal <= 0 {
		return domain.RunConfig{}, fmt.Errorf("principal %s: %w", strconv.FormatFloat(r.Principal, 'f', -1, 64), ErrInvalidValue)
	}

	if out.ScenarioID != "" {
		sc := domain.ScenarioByID(out.ScenarioID)
		if sc == nil && (r.CommissionBps == nil || r.SlippageBps == nil) {
			return domain.RunConfig{}, fmt.Errorf("scenario %q: %w", r.Scenario, ErrInvalidValue)
		}
		if sc != nil {
			out.CommissionBps = sc.CommissionBps
			out.SlippageBps = sc.SlippageBps
			out.Lag = sc.LagBars
		}
	}
	if r.CommissionBps != nil {
		out.CommissionBps = *r.CommissionBps
	}
	if r.SlippageBps != nil {
		out.SlippageBps = *r.SlippageBps
	}
	if r.Lag != nil {
		out.Lag = *r.Lag
	}

	var err error
	if out.Start, err = parseDate(r.Start); err != nil {
		return domain.RunConfig{}, fmt.Errorf("start: %w", err)
	}
	if out.End, err = parseDate(r.End); err != nil {
		return domain.RunConfig{}, fmt.Errorf("end: %w", err)
	}

	if len(r.Universe) == 0 {
		return domain.RunConfig{}, fmt.Errorf("universe: %w", ErrMissingField)
	}
	assets := make([]domain.Asset, 0, len(r.Universe))
	for _, a := range r.Universe {
		assets = append(assets, domain.Asset{Name: a.Name, Code: a.Code, Weight: a.Weight})
		if a.Sector != "" {
			if out.Sectors == nil {
				out.Sectors = make(map[string]string)
			}
			out.Sectors[a.Name] = a.Sector
		}
	}
	if out.Universe, err = domain.NewUniverse(assets); err != nil {
		return domain.RunConfig{}, fmt.Errorf("universe: %w", err)
	}

	if len(r.Benchmark) > 0 {
		out.Benchmark = make(weights.Vector, len(r.Benchmark))
		for name, w := range r.Benchmark {
			out.Benchmark[name] = w
		}
	}

	return out, nil
}

// RunConfigs converts every run entry.
func (c *Config) RunConfigs() ([]domain.RunConfig, error) {
	out := make([]domain.RunConfig, 0, len(c.Runs))
	for i, r := range c.Runs {
		rc, err := r.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("runs[%d]: %w", i, err)
		}
		out = append(out, rc)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidValue)
	}
	return t, nil
}
