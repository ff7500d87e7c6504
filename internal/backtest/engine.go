package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"investment-x/internal/domain"
	"investment-x/internal/portfolio"
	"investment-x/internal/risk"
	"investment-x/internal/timeseries"
	"investment-x/internal/weights"
)

// Configuration errors returned by NewEngine.
var (
	ErrInvalidPrincipal   = errors.New("principal must be positive")
	ErrNegativeCommission = errors.New("commission must not be negative")
	ErrNegativeSlippage   = errors.New("slippage must not be negative")
	ErrNegativeLag        = errors.New("lag must not be negative")
	ErrEmptyUniverse      = errors.New("universe is empty")
	ErrInvalidDateRange   = errors.New("end date is before start date")
	ErrUnknownFrequency   = timeseries.ErrUnknownFrequency
	ErrNilStrategy        = errors.New("strategy is required")
)

// ErrFrameExhausted is returned by Step when no bar is left to simulate.
var ErrFrameExhausted = errors.New("no bars left in price frame")

// MinTurnover is the turnover under which a rebalance is skipped.
const MinTurnover = 1e-6

// Recorder receives simulation events for monitoring.
type Recorder interface {
	RecordBar(strategy string)
	RecordRebalance(strategy string, turnover, cost float64)
	RecordLiquidation(strategy string)
	RecordDroppedAssets(strategy string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordBar(string) {}

func (nopRecorder) RecordRebalance(string, float64, float64) {}

func (nopRecorder) RecordLiquidation(string) {}

func (nopRecorder) RecordDroppedAssets(string, int) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// PendingAllocation is a target waiting for its execution bar.
type PendingAllocation struct {
	DueIndex int
	Weights  weights.Vector // by asset code
}

// SimulationState is the engine state between two bars.
// Step never mutates the state it receives.
type SimulationState struct {
	Date              time.Time
	Index             int // last simulated bar, -1 before the first
	Portfolio         *portfolio.Portfolio
	Pending           []PendingAllocation
	LastTargetWeights weights.Vector // by asset name, nil until the first rebalance
	BenchmarkValue    float64
}

// Engine runs one strategy over one price frame.
type Engine struct {
	cfg      domain.RunConfig
	strategy Strategy
	risk     *risk.Manager
	logger   zerolog.Logger
	recorder Recorder

	names      []string
	benchmark  weights.Vector // normalized, by asset code
	costFactor float64        // (commission + slippage) / 1e4
}

// NewEngine validates cfg and creates an engine.
// A nil risk manager applies no constraints beyond renormalization.
func NewEngine(cfg domain.RunConfig, strategy Strategy, rm *risk.Manager, opts ...Option) (*Engine, error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}
	if !(cfg.Principal > 0) || math.IsInf(cfg.Principal, 0) {
		return nil, fmt.Errorf("%v: %w", cfg.Principal, ErrInvalidPrincipal)
	}
	if cfg.CommissionBps < 0 {
		return nil, fmt.Errorf("%v bps: %w", cfg.CommissionBps, ErrNegativeCommission)
	}
	if cfg.SlippageBps < 0 {
		return nil, fmt.Errorf("%v bps: %w", cfg.SlippageBps, ErrNegativeSlippage)
	}
	if cfg.Lag < 0 {
		return nil, fmt.Errorf("%d bars: %w", cfg.Lag, ErrNegativeLag)
	}
	if cfg.Universe.Len() == 0 {
		return nil, ErrEmptyUniverse
	}
	if !cfg.Frequency.IsValid() {
		return nil, fmt.Errorf("%q: %w", cfg.Frequency, ErrUnknownFrequency)
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("%s < %s: %w",
			cfg.End.Format(time.DateOnly), cfg.Start.Format(time.DateOnly), ErrInvalidDateRange)
	}
	if rm == nil {
		rm = risk.Unconstrained()
	}

	e := &Engine{
		cfg:        cloneConfig(cfg),
		strategy:   strategy,
		risk:       rm,
		logger:     zerolog.Nop(),
		recorder:   nopRecorder{},
		names:      cfg.Universe.Names(),
		costFactor: (cfg.CommissionBps + cfg.SlippageBps) / 10000,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("strategy", strategy.Name()).Logger()
	e.benchmark = e.benchmarkWeights()

	return e, nil
}

func cloneConfig(cfg domain.RunConfig) domain.RunConfig {
	out := cfg
	if cfg.Benchmark != nil {
		out.Benchmark = cfg.Benchmark.Clone()
	}
	if cfg.Sectors != nil {
		out.Sectors = make(map[string]string, len(cfg.Sectors))
		for k, v := range cfg.Sectors {
			out.Sectors[k] = v
		}
	}
	return out
}

// Config returns the engine configuration.
func (e *Engine) Config() domain.RunConfig {
	return cloneConfig(e.cfg)
}

// InitialState returns the state before the first bar: all cash, nothing
// pending.
func (e *Engine) InitialState() SimulationState {
	return SimulationState{
		Index:          -1,
		Portfolio:      portfolio.New(e.cfg.Principal),
		BenchmarkValue: e.cfg.Principal,
	}
}

func (e *Engine) environment(frame *timeseries.Frame, i int) *Environment {
	return &Environment{
		Date:     frame.Date(i),
		Index:    i,
		Universe: e.cfg.Universe,
		Frame:    frame,
	}
}

// Step simulates the bar after state.Index and returns the new state and
// the book record for that bar. The benchmark is compounded from
// state.BenchmarkValue.
func (e *Engine) Step(ctx context.Context, state SimulationState, frame *timeseries.Frame, schedule timeseries.Schedule) (SimulationState, domain.BookRecord, error) {
	return e.step(ctx, state, frame, schedule, nil)
}

// step is Step reading the benchmark from bench when it is non-nil.
func (e *Engine) step(
	ctx context.Context,
	state SimulationState,
	frame *timeseries.Frame,
	schedule timeseries.Schedule,
	bench []float64,
) (SimulationState, domain.BookRecord, error) {
	if err := ctx.Err(); err != nil {
		return state, domain.BookRecord{}, err
	}

	i := state.Index + 1
	if i >= frame.Len() {
		return state, domain.BookRecord{}, ErrFrameExhausted
	}

	next := SimulationState{
		Date:              frame.Date(i),
		Index:             i,
		Portfolio:         state.Portfolio.Clone(),
		LastTargetWeights: state.LastTargetWeights,
	}
	if bench != nil {
		next.BenchmarkValue = bench[i]
	} else {
		next.BenchmarkValue = e.benchmarkStep(state, frame, i)
	}
	pf := next.Portfolio
	prices := frame.Row(i)
	log := e.logger.With().Time("date", next.Date).Logger()

	pf.MarkToMarket(prices)

	var turnover, cost float64

	for _, p := range state.Pending {
		if p.DueIndex > i {
			next.Pending = append(next.Pending, p)
			continue
		}
		t, c := e.executeTrades(log, pf, p.Weights, prices)
		turnover += t
		cost += c
	}

	rebalanced := schedule.IsTradeBar(i) || state.Index < 0
	if rebalanced {
		target, err := e.target(log, pf, e.environment(frame, i))
		if err != nil {
			return state, domain.BookRecord{}, fmt.Errorf("allocate on %s: %w", next.Date.Format(time.DateOnly), err)
		}
		next.LastTargetWeights = target

		byCode, _ := e.cfg.Universe.ToCodes(target)
		if e.cfg.Lag == 0 {
			t, c := e.executeTrades(log, pf, byCode, prices)
			turnover += t
			cost += c
		} else {
			next.Pending = append(next.Pending, PendingAllocation{DueIndex: i + e.cfg.Lag, Weights: byCode})
		}
	}

	e.recorder.RecordBar(e.strategy.Name())

	rec := domain.BookRecord{
		Date:            next.Date,
		PortfolioValue:  pf.TotalValue(),
		Cash:            pf.Cash,
		Shares:          pf.Shares(),
		Values:          pf.Values(),
		Weights:         pf.Weights(),
		BenchmarkValue:  next.BenchmarkValue,
		Turnover:        turnover,
		TransactionCost: cost,
		Rebalanced:      rebalanced,
	}
	if next.LastTargetWeights != nil {
		rec.TargetWeights, _ = e.cfg.Universe.ToCodes(next.LastTargetWeights)
	}

	return next, rec, nil
}

// target computes the constrained, name-indexed target for bar env.Index.
func (e *Engine) target(log zerolog.Logger, pf *portfolio.Portfolio, env *Environment) (weights.Vector, error) {
	raw, err := allocate(e.strategy, env)
	if err != nil {
		return nil, err
	}

	known := raw.Filter(func(name string, _ float64) bool { return e.cfg.Universe.Has(name) })
	if dropped := len(raw) - len(known); dropped > 0 {
		var names []string
		for _, k := range raw.Keys() {
			if _, ok := known[k]; !ok {
				names = append(names, k)
			}
		}
		log.Warn().Strs("assets", names).Msg("dropping assets outside the universe from allocation")
		e.recorder.RecordDroppedAssets(e.strategy.Name(), dropped)
	}

	aligned := known.Align(e.names)
	current := e.cfg.Universe.ToNames(pf.Weights())

	return e.risk.ApplyConstraints(aligned, current, e.cfg.Sectors), nil
}

// ExecuteTrades rebalances p toward target (by asset code) at prices and
// returns the turnover and the transaction cost charged.
func (e *Engine) ExecuteTrades(p *portfolio.Portfolio, target weights.Vector, prices map[string]float64) (turnover, cost float64) {
	return e.executeTrades(e.logger, p, target, prices)
}

func (e *Engine) executeTrades(log zerolog.Logger, p *portfolio.Portfolio, target weights.Vector, prices map[string]float64) (turnover, cost float64) {
	turnover = weights.L1Distance(p.Weights(), target)
	if turnover < MinTurnover {
		return 0, 0
	}

	total := p.TotalValue()
	cost = total * turnover * e.costFactor
	net := total - cost

	tradable := target.Filter(func(code string, w float64) bool {
		if w == 0 {
			return false
		}
		if !portfolio.ValidPrice(prices[code]) {
			log.Warn().Str("asset", code).Float64("weight", w).Msg("no valid price, dropping asset from trade")
			return false
		}
		return true
	})
	if dropped := len(target.NonZero()) - len(tradable); dropped > 0 {
		e.recorder.RecordDroppedAssets(e.strategy.Name(), dropped)
	}

	if len(tradable) == 0 || math.Abs(tradable.Sum()) < weights.Epsilon {
		if len(target.NonZero()) > 0 {
			log.Warn().Float64("net_value", net).Msg("nothing tradable, liquidating to cash")
		}
		p.Liquidate(net)
		p.MarkToMarket(prices)
		e.recorder.RecordLiquidation(e.strategy.Name())
		e.recorder.RecordRebalance(e.strategy.Name(), turnover, cost)
		return turnover, cost
	}

	tradable = tradable.Normalize()
	shares := make(map[string]float64, len(tradable))
	invested := 0.0
	for _, code := range tradable.Keys() {
		px := prices[code]
		n := net * tradable[code] / px
		shares[code] = n
		invested += n * px
	}

	p.Replace(shares, prices, net-invested)
	p.MarkToMarket(prices)
	e.recorder.RecordRebalance(e.strategy.Name(), turnover, cost)

	return turnover, cost
}

// benchmarkWeights resolves the static benchmark by asset code.
func (e *Engine) benchmarkWeights() weights.Vector {
	byName := e.cfg.Benchmark
	if byName == nil {
		byName = e.cfg.Universe.StaticWeights()
	}
	byCode, dropped := e.cfg.Universe.ToCodes(byName)
	if len(dropped) > 0 {
		e.logger.Warn().Strs("assets", dropped).Msg("dropping benchmark assets outside the universe")
	}
	return byCode.Normalize()
}

// benchmarkStep compounds the benchmark into bar i.
// Missing returns count as 0.
func (e *Engine) benchmarkStep(state SimulationState, frame *timeseries.Frame, i int) float64 {
	if i == 0 {
		return e.cfg.Principal
	}
	r := 0.0
	for _, code := range e.benchmark.Keys() {
		prev, cur := frame.Price(code, i-1), frame.Price(code, i)
		if !(prev > 0) || math.IsNaN(cur) || math.IsInf(cur, 0) {
			continue
		}
		r += e.benchmark[code] * (cur/prev - 1)
	}
	return state.BenchmarkValue * (1 + r)
}

// BenchmarkPath returns the benchmark value for every bar of frame. Run
// computes it once before simulating the first bar.
func (e *Engine) BenchmarkPath(frame *timeseries.Frame) []float64 {
	path := make([]float64, frame.Len())
	state := e.InitialState()
	for i := range path {
		state.BenchmarkValue = e.benchmarkStep(state, frame, i)
		path[i] = state.BenchmarkValue
	}
	return path
}

// Result is the output of one engine run.
type Result struct {
	StrategyName      string
	Book              []domain.BookRecord
	LastTargetWeights weights.Vector // by asset name
	TradeDates        []time.Time
	Final             *portfolio.Portfolio
}

// NAV returns the portfolio value path.
func (r *Result) NAV() []float64 {
	out := make([]float64, len(r.Book))
	for i, rec := range r.Book {
		out[i] = rec.PortfolioValue
	}
	return out
}

// BenchmarkNAV returns the benchmark value path.
func (r *Result) BenchmarkNAV() []float64 {
	out := make([]float64, len(r.Book))
	for i, rec := range r.Book {
		out[i] = rec.BenchmarkValue
	}
	return out
}

// Dates returns the simulated dates.
func (r *Result) Dates() []time.Time {
	out := make([]time.Time, len(r.Book))
	for i, rec := range r.Book {
		out[i] = rec.Date
	}
	return out
}

// Run simulates every bar of frame in order.
// An empty frame is logged and yields an empty book. ctx is checked between
// bars only.
func (e *Engine) Run(ctx context.Context, frame *timeseries.Frame) (*Result, error) {
	res := &Result{
		StrategyName: e.strategy.Name(),
		Book:         make([]domain.BookRecord, 0, frame.Len()),
	}

	if frame.Empty() {
		e.logger.Warn().Msg("price history is empty, nothing to simulate")
		res.Final = portfolio.New(e.cfg.Principal)
		return res, nil
	}

	schedule, err := timeseries.TradeDates(frame.Dates(), e.cfg.Frequency)
	if err != nil {
		return nil, err
	}
	res.TradeDates = schedule.Dates()

	if err := e.strategy.Initialize(ctx, e.environment(frame, 0)); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", e.strategy.Name(), err)
	}

	e.logger.Debug().
		Int("bars", frame.Len()).
		Int("trade_dates", schedule.Len()).
		Msg("starting simulation")

	bench := e.BenchmarkPath(frame)

	state := e.InitialState()
	for state.Index+1 < frame.Len() {
		var rec domain.BookRecord
		state, rec, err = e.step(ctx, state, frame, schedule, bench)
		if err != nil {
			return nil, err
		}
		res.Book = append(res.Book, rec)
	}

	res.LastTargetWeights = state.LastTargetWeights
	res.Final = state.Portfolio
	return res, nil
}
