package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"investment-x/internal/config"
	"investment-x/internal/domain"
	"investment-x/internal/observability"
	"investment-x/internal/storage"
	chstore "investment-x/internal/storage/clickhouse"
	"investment-x/internal/storage/memory"
	"investment-x/internal/storage/migrations"
	"investment-x/internal/storage/parquetstore"
	pgstore "investment-x/internal/storage/postgres"
	"investment-x/internal/storage/sqlite"
)

// stores holds the configured backends. Schemas are applied on open.
type stores struct {
	prices  storage.PriceStore
	runs    storage.RunStore
	closers []func()
}

// openStores connects the configured backends. Postgres gets a connection
// per worker plus headroom for reads.
func openStores(ctx context.Context, cfg config.Storage, workers int, logger zerolog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Prices {
	case config.BackendParquet:
		st.prices = parquetstore.NewPriceStore(cfg.ParquetDir)
	case config.BackendClickhouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		st.closers = append(st.closers, func() { _ = conn.Close() })
		st.prices = chstore.NewPriceStore(conn)
	default:
		st.prices = memory.NewPriceStore()
	}

	switch cfg.Runs {
	case config.BackendSQLite:
		rs, err := sqlite.NewRunStore(ctx, cfg.SQLitePath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		st.closers = append(st.closers, func() { _ = rs.Close() })
		st.runs = rs
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(int32(workers+2)))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		st.runs = pgstore.NewRunStore(pool)
	default:
		st.runs = memory.NewRunStore()
	}

	st.prices = timedPriceStore{PriceStore: st.prices, backend: cfg.Prices}
	st.runs = timedRunStore{RunStore: st.runs, backend: cfg.Runs}

	logger.Debug().Str("prices", cfg.Prices).Str("runs", cfg.Runs).Msg("stores opened")
	return st, nil
}

// Close releases backends in reverse open order.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// timedPriceStore records query latency and errors per backend.
type timedPriceStore struct {
	storage.PriceStore
	backend string
}

func (s timedPriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	start := time.Now()
	err := s.PriceStore.InsertBulk(ctx, points)
	observability.RecordDBQuery(s.backend, "insert_prices", time.Since(start).Seconds(), err)
	return err
}

func (s timedPriceStore) GetByTimeRange(ctx context.Context, codes []string, from, to time.Time) ([]*domain.PricePoint, error) {
	start := time.Now()
	points, err := s.PriceStore.GetByTimeRange(ctx, codes, from, to)
	observability.RecordDBQuery(s.backend, "get_prices", time.Since(start).Seconds(), err)
	return points, err
}

func (s timedPriceStore) GetDateRange(ctx context.Context, code string) (time.Time, time.Time, error) {
	start := time.Now()
	first, last, err := s.PriceStore.GetDateRange(ctx, code)
	observability.RecordDBQuery(s.backend, "get_date_range", time.Since(start).Seconds(), err)
	return first, last, err
}

// timedRunStore records query latency and errors per backend.
type timedRunStore struct {
	storage.RunStore
	backend string
}

func (s timedRunStore) Insert(ctx context.Context, run *domain.Run) error {
	start := time.Now()
	err := s.RunStore.Insert(ctx, run)
	observability.RecordDBQuery(s.backend, "insert_run", time.Since(start).Seconds(), err)
	return err
}

func (s timedRunStore) GetByID(ctx context.Context, runID string) (*domain.Run, error) {
	start := time.Now()
	run, err := s.RunStore.GetByID(ctx, runID)
	observability.RecordDBQuery(s.backend, "get_run", time.Since(start).Seconds(), err)
	return run, err
}

func (s timedRunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Run, error) {
	start := time.Now()
	runs, err := s.RunStore.GetByStrategy(ctx, strategyID)
	observability.RecordDBQuery(s.backend, "get_runs_by_strategy", time.Since(start).Seconds(), err)
	return runs, err
}
