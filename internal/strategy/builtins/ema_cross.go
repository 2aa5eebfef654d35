// Package builtins provides built-in strategy implementations that ship with
// kestrel.
package builtins

import (
	"fmt"

	"kestrel/internal/domain"
	"kestrel/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*EMACross)(nil)

// Default EMA windows, the classic MACD pair.
const (
	DefaultFastWindow = 12
	DefaultSlowWindow = 26
)

// EMACross is an exponential moving average crossover strategy: Long while
// the fast EMA is above the slow EMA, Flat otherwise.
type EMACross struct {
	fast int
	slow int
}

// NewEMACross creates an EMACross strategy with the given fast and slow
// window lengths.
func NewEMACross(fast, slow int) *EMACross {
	return &EMACross{fast: fast, slow: slow}
}

// Name returns "ema-cross".
func (s *EMACross) Name() string { return "ema-cross" }

// GenerateSignals returns one signal per bar. The EMAs are seeded with the
// first close, so the series is total from the first bar.
func (s *EMACross) GenerateSignals(bars []domain.Bar) ([]domain.Signal, error) {
	if s.fast <= 0 || s.slow <= 0 {
		return nil, fmt.Errorf("ema-cross: windows must be positive (fast=%d, slow=%d)", s.fast, s.slow)
	}
	if s.fast >= s.slow {
		return nil, fmt.Errorf("ema-cross: fast window %d must be smaller than slow window %d", s.fast, s.slow)
	}

	signals := make([]domain.Signal, len(bars))
	var fastEMA, slowEMA float64
	fastAlpha := 2.0 / (float64(s.fast) + 1)
	slowAlpha := 2.0 / (float64(s.slow) + 1)

	for i, bar := range bars {
		if i == 0 {
			fastEMA = bar.Close
			slowEMA = bar.Close
		} else {
			fastEMA += fastAlpha * (bar.Close - fastEMA)
			slowEMA += slowAlpha * (bar.Close - slowEMA)
		}

		dir := domain.Flat
		if fastEMA > slowEMA {
			dir = domain.Long
		}
		signals[i] = domain.Signal{Timestamp: bar.Timestamp, Direction: dir}
	}
	return signals, nil
}
