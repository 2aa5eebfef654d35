package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"kestrel/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// makeBars builds a daily bar series from close prices. Opens are seeded one
// tick below the close so the two execution policies are distinguishable.
func makeBars(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    "TEST",
			Timestamp: day(i),
			Open:      c - 1,
			High:      c + 1,
			Low:       c - 2,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

// fixedStrategy returns one pre-baked direction per bar, aligned by index.
type fixedStrategy struct {
	dirs []domain.Direction
}

func (s *fixedStrategy) GenerateSignals(bars []domain.Bar) ([]domain.Signal, error) {
	signals := make([]domain.Signal, len(bars))
	for i := range bars {
		d := domain.Flat
		if i < len(s.dirs) {
			d = s.dirs[i]
		}
		signals[i] = domain.Signal{Timestamp: bars[i].Timestamp, Direction: d}
	}
	return signals, nil
}

// repeat builds a direction slice of n copies of d.
func repeat(d domain.Direction, n int) []domain.Direction {
	dirs := make([]domain.Direction, n)
	for i := range dirs {
		dirs[i] = d
	}
	return dirs
}

func approx(t *testing.T, name string, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, eps)
	}
}

func mustEngine(t *testing.T, capital, cost float64) *Engine {
	t.Helper()
	e, err := New(capital, cost, ExecSameBarClose)
	if err != nil {
		t.Fatalf("New(%v, %v): %v", capital, cost, err)
	}
	return e
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		capital float64
		cost    float64
	}{
		{"zero capital", 0, 0},
		{"negative capital", -100, 0},
		{"negative cost", 10000, -0.01},
		{"cost of one", 10000, 1},
		{"cost above one", 10000, 1.5},
	}
	for _, c := range cases {
		_, err := New(c.capital, c.cost, ExecSameBarClose)
		if err == nil {
			t.Errorf("%s: New(%v, %v) succeeded, want InvalidConfigError", c.name, c.capital, c.cost)
			continue
		}
		var cfgErr *InvalidConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: error type = %T, want *InvalidConfigError", c.name, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Degenerate input
// ---------------------------------------------------------------------------

func TestRunEmptySeries(t *testing.T) {
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), nil, &fixedStrategy{})
	if err != nil {
		t.Fatalf("Run(empty): %v", err)
	}
	if res.TotalReturn != 0 || res.AnnualizedReturn != 0 || res.MaxDrawdown != 0 {
		t.Errorf("empty series result not zeroed: %+v", res)
	}
	if len(res.Trades) != 0 || len(res.EquityCurve) != 0 {
		t.Errorf("empty series produced trades or equity points: %+v", res)
	}
}

func TestRunSingleBarAnnualizationIsZero(t *testing.T) {
	// Documented choice: a zero-day elapsed range annualizes to 0.0 rather
	// than failing.
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), makeBars(100), &fixedStrategy{dirs: repeat(domain.Long, 1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.AnnualizedReturn != 0 {
		t.Errorf("AnnualizedReturn = %v, want 0 for single-bar series", res.AnnualizedReturn)
	}
}

// ---------------------------------------------------------------------------
// Alignment enforcement
// ---------------------------------------------------------------------------

type shortStrategy struct{}

func (shortStrategy) GenerateSignals(bars []domain.Bar) ([]domain.Signal, error) {
	signals := make([]domain.Signal, 0, len(bars)-1)
	for i := 0; i < len(bars)-1; i++ {
		signals = append(signals, domain.Signal{Timestamp: bars[i].Timestamp, Direction: domain.Flat})
	}
	return signals, nil
}

type skewedStrategy struct{}

func (skewedStrategy) GenerateSignals(bars []domain.Bar) ([]domain.Signal, error) {
	signals := make([]domain.Signal, len(bars))
	for i := range bars {
		signals[i] = domain.Signal{Timestamp: bars[i].Timestamp.AddDate(0, 0, 1), Direction: domain.Flat}
	}
	return signals, nil
}

func TestRunAlignmentErrors(t *testing.T) {
	e := mustEngine(t, 10000, 0)
	bars := makeBars(100, 101, 102)

	_, err := e.Run(context.Background(), bars, shortStrategy{})
	var alignErr *AlignmentError
	if !errors.As(err, &alignErr) {
		t.Fatalf("short signal series: error = %v, want *AlignmentError", err)
	}
	if alignErr.Expected != 3 || alignErr.Actual != 2 {
		t.Errorf("AlignmentError counts = %d/%d, want 3/2", alignErr.Expected, alignErr.Actual)
	}

	_, err = e.Run(context.Background(), bars, skewedStrategy{})
	if !errors.As(err, &alignErr) {
		t.Fatalf("skewed signal series: error = %v, want *AlignmentError", err)
	}
	if !alignErr.Timestamp.Equal(bars[0].Timestamp) {
		t.Errorf("AlignmentError.Timestamp = %v, want %v", alignErr.Timestamp, bars[0].Timestamp)
	}
}

func TestRunRejectsMalformedBars(t *testing.T) {
	e := mustEngine(t, 10000, 0)
	bars := makeBars(100, 101)
	bars[1].Timestamp = bars[0].Timestamp
	if _, err := e.Run(context.Background(), bars, &fixedStrategy{}); err == nil {
		t.Error("Run accepted duplicate timestamps, want error")
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestScenarioFlatPriceAlternatingSignals(t *testing.T) {
	bars := makeBars(100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	dirs := make([]domain.Direction, 10)
	for i := range dirs {
		if i%2 == 1 {
			dirs[i] = domain.Long
		}
	}

	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, tr := range res.Trades {
		approx(t, "trade PnL", tr.PnL, 0, 1e-9)
	}
	approx(t, "TotalReturn", res.TotalReturn, 0, 1e-9)
	approx(t, "MaxDrawdown", res.MaxDrawdown, 0, 1e-9)
	if len(res.Trades) == 0 {
		t.Error("alternating signals produced no trades")
	}
}

func TestScenarioRisingPriceHeldLong(t *testing.T) {
	closes := make([]float64, 101)
	for i := range closes {
		closes[i] = 100 + float64(i) // 100 -> 200 linear over 100 days
	}
	bars := makeBars(closes...)

	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: repeat(domain.Long, len(bars))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	approx(t, "TotalReturn", res.TotalReturn, 1.0, 1e-9)
	approx(t, "MaxDrawdown", res.MaxDrawdown, 0, 1e-9)
	wantAnnualized := math.Pow(2, 365.25/100) - 1
	approx(t, "AnnualizedReturn", res.AnnualizedReturn, wantAnnualized, 1e-9)

	if len(res.Trades) != 1 {
		t.Fatalf("len(Trades) = %d, want 1", len(res.Trades))
	}
	if res.Trades[0].Status != domain.TradeOpen {
		t.Errorf("held-to-end trade status = %q, want OPEN", res.Trades[0].Status)
	}
	if !res.Trades[0].ExitTime.Equal(bars[len(bars)-1].Timestamp) {
		t.Errorf("force-close exit time = %v, want final bar", res.Trades[0].ExitTime)
	}
}

func TestScenarioDrawdownAndRecovery(t *testing.T) {
	// 100 -> 50 -> 100 while long throughout.
	closes := []float64{100, 90, 75, 60, 50, 60, 75, 90, 100}
	bars := makeBars(closes...)

	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: repeat(domain.Long, len(bars))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	approx(t, "MaxDrawdown", res.MaxDrawdown, 0.5, 1e-9)
	approx(t, "TotalReturn", res.TotalReturn, 0, 1e-9)
}

func TestScenarioAllFlat(t *testing.T) {
	bars := makeBars(100, 105, 95, 110, 120)
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 0 {
		t.Errorf("all-flat run produced %d trades, want 0", len(res.Trades))
	}
	for _, p := range res.EquityCurve {
		approx(t, "TotalEquity", p.TotalEquity, 10000, 1e-9)
		approx(t, "Cash", p.Cash, 10000, 1e-9)
	}
	approx(t, "TotalReturn", res.TotalReturn, 0, 1e-9)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestRunIsIdempotent(t *testing.T) {
	bars := makeBars(100, 102, 101, 105, 103, 108, 104, 110)
	dirs := []domain.Direction{
		domain.Flat, domain.Long, domain.Long, domain.Flat,
		domain.Short, domain.Short, domain.Long, domain.Long,
	}
	e := mustEngine(t, 10000, 0.001)

	first, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different results")
	}
}

func TestCapitalConservation(t *testing.T) {
	bars := makeBars(100, 90, 75, 60, 50, 60, 75, 90, 100, 120)
	dirs := []domain.Direction{
		domain.Flat, domain.Long, domain.Long, domain.Flat, domain.Long,
		domain.Long, domain.Flat, domain.Long, domain.Long, domain.Long,
	}
	e := mustEngine(t, 10000, 0.002)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.EquityCurve) != len(bars) {
		t.Fatalf("len(EquityCurve) = %d, want %d", len(res.EquityCurve), len(bars))
	}
	approx(t, "equity at t=0", res.EquityCurve[0].TotalEquity, 10000, 1e-9)
	for i, p := range res.EquityCurve {
		if p.TotalEquity < 0 {
			t.Errorf("equity[%d] = %v, want >= 0", i, p.TotalEquity)
		}
		approx(t, "cash+position", p.Cash+p.PositionValue, p.TotalEquity, 1e-9)
	}
}

func TestTradeClosure(t *testing.T) {
	bars := makeBars(100, 105, 103, 108, 102, 110, 107)
	dirs := []domain.Direction{
		domain.Long, domain.Long, domain.Short, domain.Flat,
		domain.Long, domain.Short, domain.Long,
	}
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every opened position must have a matching close: no trade record may
	// lack an exit, and the final position must not survive the run.
	for i, tr := range res.Trades {
		if tr.ExitTime.IsZero() {
			t.Errorf("trade %d has no exit time", i)
		}
		if tr.Status != domain.TradeClosed && tr.Status != domain.TradeOpen {
			t.Errorf("trade %d has status %q", i, tr.Status)
		}
	}
	last := res.Trades[len(res.Trades)-1]
	if !last.ExitTime.Equal(bars[len(bars)-1].Timestamp) {
		t.Errorf("final trade exit = %v, want series end", last.ExitTime)
	}
}

func TestDrawdownBound(t *testing.T) {
	bars := makeBars(100, 40, 180, 30, 150, 60, 90)
	e := mustEngine(t, 5000, 0.005)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: repeat(domain.Long, len(bars))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.MaxDrawdown < 0 || res.MaxDrawdown > 1 {
		t.Errorf("MaxDrawdown = %v, want within [0, 1]", res.MaxDrawdown)
	}
}

// ---------------------------------------------------------------------------
// Policies and costs
// ---------------------------------------------------------------------------

func TestDirectionFlipClosesThenReopens(t *testing.T) {
	bars := makeBars(100, 100, 100)
	dirs := []domain.Direction{domain.Long, domain.Short, domain.Long}
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 3 {
		t.Fatalf("len(Trades) = %d, want 3 (close, close, force-close)", len(res.Trades))
	}
	wantDirs := []domain.Direction{domain.Long, domain.Short, domain.Long}
	for i, tr := range res.Trades {
		if tr.Direction != wantDirs[i] {
			t.Errorf("trade %d direction = %v, want %v", i, tr.Direction, wantDirs[i])
		}
	}
	if res.Trades[2].Status != domain.TradeOpen {
		t.Errorf("final trade status = %q, want OPEN", res.Trades[2].Status)
	}
}

func TestShortPositionProfitsFromDecline(t *testing.T) {
	bars := makeBars(100, 90, 80)
	e := mustEngine(t, 10000, 0)
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: repeat(domain.Short, len(bars))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	approx(t, "TotalReturn", res.TotalReturn, 0.2, 1e-9)
	if len(res.Trades) != 1 {
		t.Fatalf("len(Trades) = %d, want 1", len(res.Trades))
	}
	approx(t, "short PnL", res.Trades[0].PnL, 2000, 1e-9)
	approx(t, "short ReturnPct", res.Trades[0].ReturnPct, 0.2, 1e-9)
}

func TestTransactionCostReducesEquity(t *testing.T) {
	bars := makeBars(100, 100)
	dirs := []domain.Direction{domain.Long, domain.Flat}
	e, err := New(10000, 0.01, ExecSameBarClose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: dirs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Open: notional scaled to cash/(1+c); close: proceeds less c*notional.
	want := 10000 / 1.01 * 0.99
	approx(t, "FinalEquity", res.FinalEquity, want, 1e-6)
	if res.TotalReturn >= 0 {
		t.Errorf("TotalReturn = %v, want negative with round-trip costs", res.TotalReturn)
	}
}

func TestNextBarOpenPolicy(t *testing.T) {
	bars := makeBars(100, 110, 120) // opens are close-1: 99, 109, 119
	e, err := New(10000, 0, ExecNextBarOpen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Run(context.Background(), bars, &fixedStrategy{dirs: repeat(domain.Long, len(bars))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("len(Trades) = %d, want 1", len(res.Trades))
	}
	// Signal on bar 0 executes at bar 1's open.
	approx(t, "entry price", res.Trades[0].EntryPrice, 109, 1e-9)
	approx(t, "FinalEquity", res.FinalEquity, 10000*120/109, 1e-6)
}
