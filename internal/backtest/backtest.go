// Package backtest implements the core backtesting engine: it replays a
// daily price series through a strategy's signals, simulates single-position
// capital allocation, and derives risk/return statistics from the resulting
// equity curve.
package backtest

import (
	"context"
	"fmt"

	"kestrel/internal/domain"
)

// ExecutionPolicy selects the bar at which a signal transition is executed.
type ExecutionPolicy int

const (
	// ExecSameBarClose executes a transition at the close of the bar the
	// signal appears on. This is the default: the strategy contract already
	// guarantees signals are lag-appropriate, so acting on the same bar
	// introduces no look-ahead.
	ExecSameBarClose ExecutionPolicy = iota

	// ExecNextBarOpen defers a transition to the open of the following bar,
	// the convention of backtesters that treat a signal as observable only
	// after its bar completes. A transition signalled on the final bar is
	// dropped (there is no next bar), apart from the end-of-series
	// force-close.
	ExecNextBarOpen
)

// Strategy is the single capability the engine needs from a signal
// generator: a pure, total mapping from a price series to an aligned signal
// series. Concrete strategies live in internal/strategy.
type Strategy interface {
	GenerateSignals(bars []domain.Bar) ([]domain.Signal, error)
}

// Result is the immutable outcome of one engine run. It owns its trade log
// and equity curve; nothing aliases back into simulator state.
type Result struct {
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	Volatility       float64
	SharpeRatio      float64
	WinRate          float64
	AvgTradeReturn   float64
	BestTrade        float64
	WorstTrade       float64
	InitialCapital   float64
	FinalEquity      float64
	Bars             int
	Trades           []domain.Trade
	EquityCurve      []domain.EquityPoint
}

// Engine runs backtests. It is read-only after construction, so a single
// Engine may be shared by concurrent Run calls.
type Engine struct {
	initialCapital float64
	costRate       float64
	policy         ExecutionPolicy
}

// New creates an Engine. initialCapital must be positive and costRate (a
// per-fill transaction cost as a fraction of notional) must be in [0, 1);
// violations are rejected here with InvalidConfigError, never mid-run.
func New(initialCapital, costRate float64, policy ExecutionPolicy) (*Engine, error) {
	if initialCapital <= 0 {
		return nil, &InvalidConfigError{Field: "initial_capital", Value: initialCapital, Reason: "must be > 0"}
	}
	if costRate < 0 || costRate >= 1 {
		return nil, &InvalidConfigError{Field: "cost_rate", Value: costRate, Reason: "must be in [0, 1)"}
	}
	return &Engine{
		initialCapital: initialCapital,
		costRate:       costRate,
		policy:         policy,
	}, nil
}

// Run evaluates strategy against bars and returns the assembled Result. An
// empty series yields a zeroed result. Alignment and series-shape violations
// are detected before the first simulation step. For valid, aligned,
// non-empty input Run never fails.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, strategy Strategy) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return &Result{InitialCapital: e.initialCapital}, nil
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("price series: %w", err)
	}

	signals, err := strategy.GenerateSignals(bars)
	if err != nil {
		return nil, fmt.Errorf("generating signals: %w", err)
	}
	if err := validateAlignment(bars, signals); err != nil {
		return nil, err
	}

	sim := newSimulator(e.initialCapital, e.costRate)
	tracker := newEquityTracker(len(bars))

	for i, bar := range bars {
		switch e.policy {
		case ExecNextBarOpen:
			if i > 0 {
				sim.Step(bar.Timestamp, signals[i-1].Direction, bar.Open)
			}
		default:
			sim.Step(bar.Timestamp, signals[i].Direction, bar.Close)
		}
		if i == len(bars)-1 {
			sim.ForceClose(bar.Timestamp, bar.Close)
		}
		tracker.Observe(bar, sim.cash, sim.pos)
	}

	stats := analyze(e.initialCapital, tracker.points, sim.trades)

	trades := make([]domain.Trade, len(sim.trades))
	copy(trades, sim.trades)
	curve := make([]domain.EquityPoint, len(tracker.points))
	copy(curve, tracker.points)

	return &Result{
		TotalReturn:      stats.totalReturn,
		AnnualizedReturn: stats.annualizedReturn,
		MaxDrawdown:      stats.maxDrawdown,
		Volatility:       stats.volatility,
		SharpeRatio:      stats.sharpeRatio,
		WinRate:          stats.winRate,
		AvgTradeReturn:   stats.avgTradeReturn,
		BestTrade:        stats.bestTrade,
		WorstTrade:       stats.worstTrade,
		InitialCapital:   e.initialCapital,
		FinalEquity:      stats.finalEquity,
		Bars:             len(bars),
		Trades:           trades,
		EquityCurve:      curve,
	}, nil
}

// validateAlignment checks that the signal series matches the bar series 1:1
// by position and timestamp.
func validateAlignment(bars []domain.Bar, signals []domain.Signal) error {
	if len(signals) != len(bars) {
		return &AlignmentError{Expected: len(bars), Actual: len(signals), Index: -1}
	}
	for i := range bars {
		if !signals[i].Timestamp.Equal(bars[i].Timestamp) {
			return &AlignmentError{
				Expected:  len(bars),
				Actual:    len(signals),
				Index:     i,
				Timestamp: bars[i].Timestamp,
			}
		}
	}
	return nil
}
