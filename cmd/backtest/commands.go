package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"investment-x/internal/domain"
	"investment-x/internal/metrics"
	"investment-x/internal/observability"
	"investment-x/internal/orchestrator"
	"investment-x/internal/verification"
)

func runCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	var asJSON, noPersist bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured backtest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			configs, err := cfg.RunConfigs()
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				return errors.New("config has no runs")
			}

			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if cfg.Metrics.Enabled {
				stop := serveMetrics(cfg.Metrics.Addr, logger)
				defer stop()
			}

			m := observability.DefaultMetrics
			orchOpts := orchestrator.Options{
				PriceStore: st.prices,
				Recorder:   m,
				InFlight:   m.RunsInFlight,
				Logger:     &logger,
				Workers:    cfg.Workers,
			}
			if !noPersist {
				orchOpts.RunStore = st.runs
			}

			result, err := orchestrator.New(orchOpts).Run(ctx, configs)
			if result != nil {
				if result.Succeeded > 0 {
					m.LastSuccessfulRun.SetToCurrentTime()
				}
				if asJSON {
					if perr := printJSON(cmd.OutOrStdout(), batchSummaries(result)); perr != nil {
						return perr
					}
				} else {
					printBatch(cmd.OutOrStdout(), result)
				}
			}
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d runs failed", result.Failed, len(result.Outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not write runs to the run store")
	return cmd
}

func compareCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare STRATEGY_ID",
		Short: "Compare the latest persisted runs of a strategy across scenarios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			summary, err := metrics.NewAggregator(st.runs).Summarize(ctx, args[0])
			if err != nil {
				return fmt.Errorf("compare %s: %w", args[0], err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the comparison as JSON")
	return cmd
}

func loadPricesCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load-prices FILE.csv",
		Short: "Load asset_code,date,price rows into the price store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			points, err := readPriceCSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.prices.InsertBulk(ctx, points); err != nil {
				return fmt.Errorf("insert prices: %w", err)
			}

			codes := distinctCodes(points)
			for _, code := range codes {
				first, last, err := st.prices.GetDateRange(ctx, code)
				if err != nil {
					return fmt.Errorf("date range %s: %w", code, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s .. %s\n", code, first.Format(dateLayout), last.Format(dateLayout))
			}
			logger.Info().Int("points", len(points)).Int("assets", len(codes)).Str("backend", cfg.Storage.Prices).Msg("prices loaded")
			return nil
		},
	}
}

func migrateCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schemas for the configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			st.Close()
			logger.Info().Str("prices", cfg.Storage.Prices).Str("runs", cfg.Storage.Runs).Msg("migrations applied")
			return nil
		},
	}
}

func verifyCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [RUN_ID]",
		Short: "Replay persisted runs and compare them with the stored books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			configs, err := cfg.RunConfigs()
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			v := verification.NewReplayVerifier(st.prices, st.runs, configs)
			w := cmd.OutOrStdout()

			var results []verification.VerificationResult
			if len(args) == 1 {
				res, err := v.VerifyRun(ctx, args[0])
				if err != nil {
					return err
				}
				results = append(results, *res)
			} else {
				report, err := v.VerifyAll(ctx)
				if err != nil {
					return err
				}
				results = report.Results
				fmt.Fprintf(w, "%d runs: %d matched, %d divergent, %d without configuration\n",
					report.TotalRuns, report.MatchedRuns, report.DivergentRuns, report.SkippedRuns)
			}

			divergent := 0
			for _, res := range results {
				if res.Match {
					fmt.Fprintf(w, "%s  OK\n", res.RunID)
					continue
				}
				divergent++
				fmt.Fprintf(w, "%s  DIVERGENT (%d fields)\n", res.RunID, len(res.Divergences))
				for _, d := range res.Divergences {
					fmt.Fprintf(w, "    %s: stored %v, replayed %v\n", d.Field, d.Expected, d.Actual)
				}
			}
			if divergent > 0 {
				return fmt.Errorf("%d runs diverged", divergent)
			}
			return nil
		},
	}
}

func checkDataCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-data",
		Short: "Check that the price store covers every configured run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			configs, err := cfg.RunConfigs()
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg.Storage, cfg.Workers, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			failed := 0
			for i, rc := range configs {
				res, err := verification.CheckCoverage(ctx, st.prices, rc)
				if err != nil {
					return fmt.Errorf("runs[%d]: %w", i, err)
				}
				if !res.AllPass {
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "runs[%d] %s %s\n%s\n", i, rc.StrategyID, rc.ScenarioID, res)
			}
			if failed > 0 {
				logger.Warn().Int("runs", failed).Msg("price coverage incomplete")
			}
			return nil
		},
	}
}

// serveMetrics exposes /metrics until the returned stop function is called.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

const dateLayout = "2006-01-02"

// readPriceCSV parses rows of asset_code,date,price. A header row is skipped.
func readPriceCSV(r io.Reader) ([]*domain.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var points []*domain.PricePoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(rec[0], "asset_code") {
			continue
		}

		date, err := time.Parse(dateLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: date %q: %w", line, rec[1], err)
		}
		price, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: price %q: %w", line, rec[2], err)
		}
		points = append(points, &domain.PricePoint{AssetCode: rec[0], Date: date, Price: price})
	}
	return points, nil
}

func distinctCodes(points []*domain.PricePoint) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, p := range points {
		if _, ok := seen[p.AssetCode]; ok {
			continue
		}
		seen[p.AssetCode] = struct{}{}
		codes = append(codes, p.AssetCode)
	}
	sort.Strings(codes)
	return codes
}
