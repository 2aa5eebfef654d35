package backtest

import "kestrel/internal/domain"

// equityTracker accumulates one mark-to-market EquityPoint per bar as the
// simulator advances. It never fabricates equity: every point is the
// simulator's cash balance plus the open position valued at the bar's close.
type equityTracker struct {
	points []domain.EquityPoint
}

func newEquityTracker(n int) *equityTracker {
	return &equityTracker{points: make([]domain.EquityPoint, 0, n)}
}

// Observe records the account state after the simulator has processed bar.
func (t *equityTracker) Observe(bar domain.Bar, cash float64, pos *domain.Position) {
	var positionValue float64
	if pos != nil {
		positionValue = pos.Quantity * bar.Close
	}
	t.points = append(t.points, domain.EquityPoint{
		Timestamp:     bar.Timestamp,
		Cash:          cash,
		PositionValue: positionValue,
		TotalEquity:   cash + positionValue,
	})
}
