package backtest

import (
	"time"

	"kestrel/internal/domain"
)

// simulator converts directional signals into position changes and records
// round-trip trades. It owns the cash balance and the single open position
// for the duration of one engine run. Cash moves only when a position opens
// or closes; everything between trade events is mark-to-market.
type simulator struct {
	cash     float64
	costRate float64
	dir      domain.Direction
	pos      *domain.Position
	trades   []domain.Trade
}

func newSimulator(initialCapital, costRate float64) *simulator {
	return &simulator{
		cash:     initialCapital,
		costRate: costRate,
		dir:      domain.Flat,
	}
}

// Step reconciles the simulator with the target direction for one bar,
// executing at price. An unchanged signal carries the position forward. A
// direction flip (long to short or back) is two atomic sub-transitions at the
// same bar: close the old position, then open the new one.
func (s *simulator) Step(ts time.Time, target domain.Direction, price float64) {
	if target == s.dir {
		return
	}
	if s.pos != nil {
		s.close(ts, price, domain.TradeClosed)
	}
	if target != domain.Flat {
		s.open(ts, price, target)
	}
	s.dir = target
}

// ForceClose liquidates any open position at the final bar's close price and
// marks the trade OPEN, so the trade log is always fully closed out at the
// end of a series.
func (s *simulator) ForceClose(ts time.Time, price float64) {
	if s.pos == nil {
		return
	}
	s.close(ts, price, domain.TradeOpen)
	s.dir = domain.Flat
}

// open invests all available cash at price. With a non-zero cost rate the
// notional is scaled down so the fill plus its cost exactly consumes the cash
// balance, keeping equity non-negative.
func (s *simulator) open(ts time.Time, price float64, dir domain.Direction) {
	qty := s.cash / (price * (1 + s.costRate))
	if dir == domain.Short {
		qty = -qty
	}
	notional := abs(qty) * price
	if dir == domain.Long {
		s.cash -= notional
	} else {
		s.cash += notional
	}
	s.cash -= notional * s.costRate
	s.pos = &domain.Position{
		Quantity:   qty,
		EntryPrice: price,
		EntryTime:  ts,
	}
}

func (s *simulator) close(ts time.Time, price float64, status domain.TradeStatus) {
	pos := s.pos
	notional := abs(pos.Quantity) * price
	if pos.Quantity > 0 {
		s.cash += notional
	} else {
		s.cash -= notional
	}
	s.cash -= notional * s.costRate

	pnl := (price - pos.EntryPrice) * pos.Quantity
	s.trades = append(s.trades, domain.Trade{
		EntryTime:   pos.EntryTime,
		ExitTime:    ts,
		Direction:   pos.Direction(),
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   price,
		Quantity:    abs(pos.Quantity),
		PnL:         pnl,
		ReturnPct:   pnl / (pos.EntryPrice * abs(pos.Quantity)),
		HoldingDays: int(ts.Sub(pos.EntryTime).Hours() / 24),
		Status:      status,
	})
	s.pos = nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
