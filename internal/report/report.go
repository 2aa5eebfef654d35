// Package report renders backtest results as human-readable text and CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
)

// FormatPercent formats a fractional value as a percentage with two decimals.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatMoney formats a dollar amount as $X.XX.
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func completedTrades(trades []domain.Trade) int {
	n := 0
	for _, tr := range trades {
		if tr.Status == domain.TradeClosed {
			n++
		}
	}
	return n
}

// Summary renders the performance metrics of a backtest as an aligned
// two-column table.
func Summary(symbol string, res *backtest.Result) string {
	rows := []struct {
		label string
		value string
	}{
		{"Initial capital", FormatMoney(res.InitialCapital)},
		{"Final equity", FormatMoney(res.FinalEquity)},
		{"Total return", FormatPercent(res.TotalReturn)},
		{"Annualized return", FormatPercent(res.AnnualizedReturn)},
		{"Volatility", FormatPercent(res.Volatility)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", res.SharpeRatio)},
		{"Max drawdown", FormatPercent(res.MaxDrawdown)},
		{"Win rate", FormatPercent(res.WinRate)},
		{"Avg trade return", FormatPercent(res.AvgTradeReturn)},
		{"Best trade", FormatPercent(res.BestTrade)},
		{"Worst trade", FormatPercent(res.WorstTrade)},
		{"Bars", strconv.Itoa(res.Bars)},
		{"Trades (completed)", fmt.Sprintf("%d (%d)", len(res.Trades), completedTrades(res.Trades))},
	}

	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Backtest results for %s\n", symbol)
	b.WriteString(strings.Repeat("-", len("Backtest results for ")+len(symbol)))
	b.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&b, "%-*s  %s\n", width, r.label, r.value)
	}
	return b.String()
}

// TradeTable renders trades as a fixed-width table, most recent last. A
// non-positive limit includes all trades; otherwise only the last limit
// trades are shown.
func TradeTable(trades []domain.Trade, limit int) string {
	if len(trades) == 0 {
		return "No trades\n"
	}
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s  %-10s  %-5s  %10s  %10s  %9s  %6s  %s\n",
		"Entry", "Exit", "Dir", "Entry px", "Exit px", "Return", "Days", "Status")
	for _, tr := range trades {
		fmt.Fprintf(&b, "%-10s  %-10s  %-5s  %10.2f  %10.2f  %9s  %6d  %s\n",
			tr.EntryTime.Format("2006-01-02"),
			tr.ExitTime.Format("2006-01-02"),
			tr.Direction.String(),
			tr.EntryPrice,
			tr.ExitPrice,
			FormatPercent(tr.ReturnPct),
			tr.HoldingDays,
			tr.Status)
	}
	return b.String()
}

// WriteEquityCSV writes the equity curve as CSV with a header row.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "cash", "position_value", "total_equity"}); err != nil {
		return err
	}
	for _, p := range curve {
		rec := []string{
			p.Timestamp.Format("2006-01-02"),
			strconv.FormatFloat(p.Cash, 'f', 2, 64),
			strconv.FormatFloat(p.PositionValue, 'f', 2, 64),
			strconv.FormatFloat(p.TotalEquity, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
