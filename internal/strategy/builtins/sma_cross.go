package builtins

import (
	"fmt"

	"kestrel/internal/domain"
	"kestrel/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is a simple moving average crossover strategy. It stays Flat until
// both windows are full, then goes Long while the short-period SMA is above
// the long-period SMA.
type SMACross struct {
	short int
	long  int
}

// NewSMACross creates an SMACross strategy with the specified short and long
// moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{short: short, long: long}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// GenerateSignals returns one signal per bar.
func (s *SMACross) GenerateSignals(bars []domain.Bar) ([]domain.Signal, error) {
	if s.short <= 0 || s.long <= 0 {
		return nil, fmt.Errorf("sma-cross: windows must be positive (short=%d, long=%d)", s.short, s.long)
	}
	if s.short >= s.long {
		return nil, fmt.Errorf("sma-cross: short window %d must be smaller than long window %d", s.short, s.long)
	}

	signals := make([]domain.Signal, len(bars))
	var shortSum, longSum float64

	for i, bar := range bars {
		shortSum += bar.Close
		longSum += bar.Close
		if i >= s.short {
			shortSum -= bars[i-s.short].Close
		}
		if i >= s.long {
			longSum -= bars[i-s.long].Close
		}

		dir := domain.Flat
		if i >= s.long-1 {
			shortSMA := shortSum / float64(s.short)
			longSMA := longSum / float64(s.long)
			if shortSMA > longSMA {
				dir = domain.Long
			}
		}
		signals[i] = domain.Signal{Timestamp: bar.Timestamp, Direction: dir}
	}
	return signals, nil
}
