package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"investment-x/internal/domain"
	"investment-x/internal/metrics"
	"investment-x/internal/orchestrator"
)

// runSummary is the JSON form of one batch outcome. The book is omitted.
type runSummary struct {
	Index      int                         `json:"index"`
	StrategyID string                      `json:"strategy_id"`
	ScenarioID string                      `json:"scenario_id,omitempty"`
	RunID      string                      `json:"run_id,omitempty"`
	Error      string                      `json:"error,omitempty"`
	Bars       int                         `json:"bars"`
	Strategy   *domain.Performance         `json:"strategy,omitempty"`
	Benchmark  *domain.Performance         `json:"benchmark,omitempty"`
	Relative   *domain.RelativePerformance `json:"relative,omitempty"`
}

func batchSummaries(result *orchestrator.BatchResult) []runSummary {
	out := make([]runSummary, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		s := runSummary{Index: o.Index, StrategyID: o.Config.StrategyID, ScenarioID: o.Config.ScenarioID}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		if o.Report != nil {
			run := o.Report.Run
			s.StrategyID = run.StrategyID
			s.RunID = run.RunID
			s.Bars = len(run.Book)
			s.Strategy = &run.Performance
			s.Benchmark = &run.BenchmarkPerformance
			s.Relative = &run.Relative
		}
		out = append(out, s)
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBatch(w io.Writer, result *orchestrator.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tSCENARIO\tBARS\tTOTAL\tCAGR\tSHARPE\tMAX DD\tCOSTS\tACTIVE\tRUN ID")
	for _, s := range batchSummaries(result) {
		if s.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t-\terror: %s\n", s.StrategyID, s.ScenarioID, s.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%.2f\t%+.2f%%\t%s\n",
			s.StrategyID, s.ScenarioID, s.Bars,
			s.Strategy.TotalReturn*100, s.Strategy.CAGR*100, s.Strategy.Sharpe,
			s.Strategy.MaxDrawdown*100, s.Strategy.TotalTransactionCosts,
			s.Relative.ActiveReturn*100, s.RunID)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d succeeded, %d failed\n", result.Succeeded, result.Failed)
}

func printSummary(w io.Writer, s *metrics.StrategySummary) {
	fmt.Fprintf(w, "Strategy %s (%d runs)\n\n", s.StrategyID, s.RunCount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tTOTAL\tCAGR\tSHARPE\tMAX DD\tCOSTS\tRUN ID")
	for _, r := range s.Scenarios {
		fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%.2f\t%s\n",
			r.ScenarioID, r.TotalReturn*100, r.CAGR*100, r.Sharpe,
			r.MaxDrawdown*100, r.TotalTransactionCosts, r.RunID)
	}
	_ = tw.Flush()
	if s.CostDrag != nil {
		fmt.Fprintf(w, "\nCost drag (optimistic - pessimistic CAGR): %.2f%%\n", *s.CostDrag*100)
	}
}
