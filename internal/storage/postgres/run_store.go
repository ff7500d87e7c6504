package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const insertRunQuery = `
	INSERT INTO backtest_runs (
		run_id, strategy_id, scenario_id, start_date, end_date,
		principal, created_at,
		performance, benchmark_performance, relative_performance
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const insertBookRecordQuery = `
	INSERT INTO book_records (
		run_id, date, portfolio_value, cash,
		shares, asset_values, weights, target_weights,
		benchmark_value, turnover, transaction_cost, rebalanced
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertRunQuery,
		run.RunID, run.StrategyID, run.ScenarioID,
		nullableDate(run.Start), nullableDate(run.End),
		run.Principal, run.CreatedAt,
		perf, bench, rel,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}

	for _, rec := range run.Book {
		maps, err := encodeMaps(rec)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertBookRecordQuery,
			run.RunID, domain.DateOnly(rec.Date), rec.PortfolioValue, rec.Cash,
			maps[0], maps[1], maps[2], maps[3],
			rec.BenchmarkValue, rec.Turnover, rec.TransactionCost, rec.Rebalanced,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert book record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a run and its book. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT run_id, strategy_id, scenario_id, start_date, end_date,
			principal, created_at,
			performance, benchmark_performance, relative_performance
		FROM backtest_runs
		WHERE run_id = $1
	`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
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
	query := `
		SELECT run_id, strategy_id, scenario_id, start_date, end_date,
			principal, created_at,
			performance, benchmark_performance, relative_performance
		FROM backtest_runs
		WHERE strategy_id = $1
		ORDER BY created_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
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
	query := `
		SELECT date, portfolio_value, cash,
			shares, asset_values, weights, target_weights,
			benchmark_value, turnover, transaction_cost, rebalanced
		FROM book_records
		WHERE run_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	defer rows.Close()

	var book []domain.BookRecord
	for rows.Next() {
		var rec domain.BookRecord
		var shares, values, weights, targets []byte
		err := rows.Scan(
			&rec.Date, &rec.PortfolioValue, &rec.Cash,
			&shares, &values, &weights, &targets,
			&rec.BenchmarkValue, &rec.Turnover, &rec.TransactionCost, &rec.Rebalanced,
		)
		if err != nil {
			return nil, fmt.Errorf("scan book record: %w", err)
		}
		rec.Date = domain.DateOnly(rec.Date)
		if err := decodeMaps(&rec, shares, values, weights, targets); err != nil {
			return nil, err
		}
		book = append(book, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book: %w", err)
	}
	return book, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var start, end *time.Time
	var perf, bench, rel []byte

	err := row.Scan(
		&run.RunID, &run.StrategyID, &run.ScenarioID, &start, &end,
		&run.Principal, &run.CreatedAt,
		&perf, &bench, &rel,
	)
	if err != nil {
		return nil, err
	}

	if start != nil {
		run.Start = domain.DateOnly(*start)
	}
	if end != nil {
		run.End = domain.DateOnly(*end)
	}
	if err := json.Unmarshal(perf, &run.Performance); err != nil {
		return nil, fmt.Errorf("decode performance: %w", err)
	}
	if err := json.Unmarshal(bench, &run.BenchmarkPerformance); err != nil {
		return nil, fmt.Errorf("decode benchmark performance: %w", err)
	}
	if err := json.Unmarshal(rel, &run.Relative); err != nil {
		return nil, fmt.Errorf("decode relative performance: %w", err)
	}
	return &run, nil
}

// encodeMaps returns shares, values, weights and target weights as JSON.
// Nil maps encode as an empty object.
func encodeMaps(rec domain.BookRecord) ([4][]byte, error) {
	var out [4][]byte
	for i, m := range []map[string]float64{rec.Shares, rec.Values, rec.Weights, rec.TargetWeights} {
		if m == nil {
			m = map[string]float64{}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return out, fmt.Errorf("encode book record: %w", err)
		}
		out[i] = data
	}
	return out, nil
}

func decodeMaps(rec *domain.BookRecord, shares, values, weights, targets []byte) error {
	for _, f := range []struct {
		data []byte
		dst  *map[string]float64
	}{
		{shares, &rec.Shares},
		{values, &rec.Values},
		{weights, &rec.Weights},
		{targets, &rec.TargetWeights},
	} {
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return fmt.Errorf("decode book record: %w", err)
		}
	}
	return nil
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := domain.DateOnly(t)
	return &d
}
