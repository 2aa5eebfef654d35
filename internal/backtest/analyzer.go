package backtest

import (
	"math"

	"kestrel/internal/domain"
)

// daysPerYear is the calendar-day basis for annualizing returns computed over
// an elapsed wall-clock range.
const daysPerYear = 365.25

// tradingDaysPerYear is the basis for annualizing per-bar return volatility.
const tradingDaysPerYear = 252

// summaryStats holds the metrics derived from a finished equity curve and
// trade log.
type summaryStats struct {
	totalReturn      float64
	annualizedReturn float64
	maxDrawdown      float64
	volatility       float64
	sharpeRatio      float64
	winRate          float64
	avgTradeReturn   float64
	bestTrade        float64
	worstTrade       float64
	finalEquity      float64
}

// analyze is a pure function over the finished run: it reads the equity curve
// and trade log and computes summary statistics. A run with fewer than two
// bars has an undefined annualization range; by documented choice the
// annualized return (and volatility, Sharpe) are 0.0 in that case rather than
// an error.
func analyze(initialCapital float64, curve []domain.EquityPoint, trades []domain.Trade) summaryStats {
	var s summaryStats
	if len(curve) == 0 {
		return s
	}

	s.finalEquity = curve[len(curve)-1].TotalEquity
	s.totalReturn = s.finalEquity/initialCapital - 1

	elapsedDays := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours() / 24
	if elapsedDays > 0 {
		s.annualizedReturn = math.Pow(1+s.totalReturn, daysPerYear/elapsedDays) - 1
	}

	s.maxDrawdown = maxDrawdown(curve)
	s.volatility, s.sharpeRatio = volatilityAndSharpe(curve)
	s.winRate, s.avgTradeReturn, s.bestTrade, s.worstTrade = tradeStats(trades)
	return s
}

// maxDrawdown returns the largest peak-to-trough equity decline as a fraction
// of the running peak. It is 0 for a monotonically non-decreasing curve and
// never exceeds 1 for a non-negative curve.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	var dd float64
	peak := curve[0].TotalEquity
	for _, p := range curve {
		if p.TotalEquity > peak {
			peak = p.TotalEquity
		}
		if peak > 0 {
			if d := (peak - p.TotalEquity) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}

// volatilityAndSharpe computes the annualized standard deviation of per-bar
// equity returns and the annualized Sharpe ratio (zero risk-free rate). Both
// are 0 when the curve has fewer than two points or zero variance.
func volatilityAndSharpe(curve []domain.EquityPoint) (vol, sharpe float64) {
	if len(curve) < 2 {
		return 0, 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i].TotalEquity/prev-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	std := math.Sqrt(variance)
	vol = std * math.Sqrt(tradingDaysPerYear)
	if std > 0 {
		sharpe = mean / std * math.Sqrt(tradingDaysPerYear)
	}
	return vol, sharpe
}

// tradeStats derives per-trade aggregates. Win rate counts only trades the
// strategy exited on its own (status CLOSED); best/worst/average cover the
// whole log including the force-closed final trade.
func tradeStats(trades []domain.Trade) (winRate, avg, best, worst float64) {
	if len(trades) == 0 {
		return 0, 0, 0, 0
	}

	best = math.Inf(-1)
	worst = math.Inf(1)
	var closed, wins int
	for _, tr := range trades {
		avg += tr.ReturnPct
		if tr.ReturnPct > best {
			best = tr.ReturnPct
		}
		if tr.ReturnPct < worst {
			worst = tr.ReturnPct
		}
		if tr.Status == domain.TradeClosed {
			closed++
			if tr.ReturnPct > 0 {
				wins++
			}
		}
	}
	avg /= float64(len(trades))
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	return winRate, avg, best, worst
}
