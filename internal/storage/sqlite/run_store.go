// Package sqlite persists backtest runs in a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id                 TEXT PRIMARY KEY,
	strategy_id            TEXT NOT NULL,
	scenario_id            TEXT NOT NULL DEFAULT '',
	start_date             TEXT NOT NULL DEFAULT '',
	end_date               TEXT NOT NULL DEFAULT '',
	principal              REAL NOT NULL,
	created_at             INTEGER NOT NULL,
	performance            TEXT NOT NULL,
	benchmark_performance  TEXT NOT NULL,
	relative_performance   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_strategy
	ON backtest_runs (strategy_id, created_at, run_id);
CREATE TABLE IF NOT EXISTS book_records (
	run_id            TEXT NOT NULL,
	date              TEXT NOT NULL,
	portfolio_value   REAL NOT NULL,
	cash              REAL NOT NULL,
	shares            TEXT NOT NULL,
	asset_values      TEXT NOT NULL,
	weights           TEXT NOT NULL,
	target_weights    TEXT NOT NULL,
	benchmark_value   REAL NOT NULL,
	turnover          REAL NOT NULL,
	transaction_cost  REAL NOT NULL,
	rebalanced        INTEGER NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// RunStore implements storage.RunStore backed by a SQLite database.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the database at dbPath and creates the schema.
func NewRunStore(ctx context.Context, dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Insert adds a run and its book atomically. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.Run) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	perf, err := json.Marshal(run.Performance)
	if err != nil {
		return fmt.Errorf("encode performance: %w", err)
	}
	bench, err := json.Marshal(run.BenchmarkPerformance)
	if err != nil {
		return fmt.Errorf("encode benchmark performance: %w", err)
	}
	rel, err := json.Marshal(run.Relative)
	if err != nil {
		return fmt.Errorf("encode relative performance: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM backtest_runs WHERE run_id = ?`, run.RunID).Scan(&one)
	switch {
	case err == nil:
		return storage.ErrDuplicateKey
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check run exists: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			run_id, strategy_id, scenario_id, start_date, end_date,
			principal, created_at,
			performance, benchmark_performance, relative_performance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StrategyID, run.ScenarioID, formatDate(run.Start), formatDate(run.End),
		run.Principal, run.CreatedAt.UnixNano(),
		string(perf), string(bench), string(rel),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, rec := range run.Book {
		maps, err := encodeMaps(rec)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO book_records (
				run_id, date, portfolio_value, cash,
				shares, asset_values, weights, target_weights,
				benchmark_value, turnover, transaction_cost, rebalanced
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, formatDate(rec.Date), rec.PortfolioValue, rec.Cash,
			maps[0], maps[1], maps[2], maps[3],
			rec.BenchmarkValue, rec.Turnover, rec.TransactionCost, rec.Rebalanced,
		)
		if err != nil {
			return fmt.Errorf("insert book record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectRunColumns = `
	SELECT run_id, strategy_id, scenario_id, start_date, end_date,
		principal, created_at,
		performance, benchmark_performance, relative_performance
	FROM backtest_runs`

// GetByID retrieves a run and its book. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRunColumns+` WHERE run_id = ?`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	if run.Book, err = s.getBook(ctx, run.RunID); err != nil {
		return nil, err
	}
	return run, nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC, run_id ASC.
func (s *RunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRunColumns+` WHERE strategy_id = ? ORDER BY created_at ASC, run_id ASC`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query runs by strategy: %w", err)
	}

	var result []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	// Release the connection before loading books
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for _, run := range result {
		if run.Book, err = s.getBook(ctx, run.RunID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *RunStore) getBook(ctx context.Context, runID string) ([]domain.BookRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, portfolio_value, cash,
			shares, asset_values, weights, target_weights,
			benchmark_value, turnover, transaction_cost, rebalanced
		FROM book_records
		WHERE run_id = ?
		ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	defer rows.Close()

	var book []domain.BookRecord
	for rows.Next() {
		var rec domain.BookRecord
		var d, shares, values, weights, targets string
		err := rows.Scan(
			&d, &rec.PortfolioValue, &rec.Cash,
			&shares, &values, &weights, &targets,
			&rec.BenchmarkValue, &rec.Turnover, &rec.TransactionCost, &rec.Rebalanced,
		)
		if err != nil {
			return nil, fmt.Errorf("scan book record: %w", err)
		}
		if rec.Date, err = parseDate(d); err != nil {
			return nil, err
		}
		for _, f := range []struct {
			data string
			dst  *map[string]float64
		}{
			{shares, &rec.Shares},
			{values, &rec.Values},
			{weights, &rec.Weights},
			{targets, &rec.TargetWeights},
		} {
			if err := json.Unmarshal([]byte(f.data), f.dst); err != nil {
				return nil, fmt.Errorf("decode book record: %w", err)
			}
		}
		book = append(book, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book: %w", err)
	}
	return book, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var start, end, perf, bench, rel string
	var created int64

	err := row.Scan(
		&run.RunID, &run.StrategyID, &run.ScenarioID, &start, &end,
		&run.Principal, &created,
		&perf, &bench, &rel,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = time.Unix(0, created).UTC()
	if run.Start, err = parseDate(start); err != nil {
		return nil, err
	}
	if run.End, err = parseDate(end); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(perf), &run.Performance); err != nil {
		return nil, fmt.Errorf("decode performance: %w", err)
	}
	if err := json.Unmarshal([]byte(bench), &run.BenchmarkPerformance); err != nil {
		return nil, fmt.Errorf("decode benchmark performance: %w", err)
	}
	if err := json.Unmarshal([]byte(rel), &run.Relative); err != nil {
		return nil, fmt.Errorf("decode relative performance: %w", err)
	}
	return &run, nil
}

// encodeMaps returns shares, values, weights and target weights as JSON text.
func encodeMaps(rec domain.BookRecord) ([4]string, error) {
	var out [4]string
	for i, m := range []map[string]float64{rec.Shares, rec.Values, rec.Weights, rec.TargetWeights} {
		if m == nil {
			m = map[string]float64{}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return out, fmt.Errorf("encode book record: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

// formatDate stores zero dates as the empty string.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return domain.DateOnly(t).Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
