// Package domain defines the core data types shared across the kestrel
// backtesting toolkit: price bars, directional signals, trades, positions,
// and equity points.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Price data
// ---------------------------------------------------------------------------

// Bar is a single daily OHLCV price bar.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ValidateBars checks that a price series is well formed: non-empty handling
// is left to the caller, but timestamps must be unique and strictly
// increasing, and prices must be positive.
func ValidateBars(bars []Bar) error {
	for i := range bars {
		b := &bars[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar at %s has non-positive price", b.Timestamp.Format("2006-01-02"))
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar at %s has negative volume", b.Timestamp.Format("2006-01-02"))
		}
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("bar timestamps not strictly increasing at %s", b.Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Direction is a discrete target position direction produced by a strategy.
type Direction int

// Direction values. Flat is the zero value so an uninitialised simulator
// starts out of the market.
const (
	Flat Direction = iota
	Long
	Short
)

// String returns the upper-case name of the direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Sign returns +1 for Long, -1 for Short, and 0 for Flat.
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	default:
		return 0
	}
}

// Signal is a directional instruction for a single bar. A signal series is
// aligned 1:1 with its price series: same length, same timestamps, same
// order.
type Signal struct {
	Timestamp time.Time
	Direction Direction
}

// ---------------------------------------------------------------------------
// Simulation records
// ---------------------------------------------------------------------------

// Position is an open holding in the simulated account. Quantity is signed:
// positive for long, negative for short.
type Position struct {
	Quantity   float64
	EntryPrice float64
	EntryTime  time.Time
}

// Direction returns the direction implied by the position's quantity.
func (p *Position) Direction() Direction {
	switch {
	case p.Quantity > 0:
		return Long
	case p.Quantity < 0:
		return Short
	default:
		return Flat
	}
}

// TradeStatus records how a trade was closed.
type TradeStatus string

// Trade statuses. A trade still open at the end of the series is force-closed
// at the final close price and marked OPEN so reports can distinguish it from
// a trade the strategy exited on its own.
const (
	TradeClosed TradeStatus = "CLOSED"
	TradeOpen   TradeStatus = "OPEN"
)

// Trade is an immutable round-trip trade record emitted when a position
// closes. Quantity is the absolute position size; PnL carries the sign.
type Trade struct {
	EntryTime   time.Time
	ExitTime    time.Time
	Direction   Direction
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	PnL         float64
	ReturnPct   float64
	HoldingDays int
	Status      TradeStatus
}

// EquityPoint is a mark-to-market snapshot of the simulated account at one
// bar: TotalEquity = Cash + PositionValue.
type EquityPoint struct {
	Timestamp     time.Time
	Cash          float64
	PositionValue float64
	TotalEquity   float64
}
