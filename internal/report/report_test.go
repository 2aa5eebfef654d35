package report

import (
	"strings"
	"testing"
	"time"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleResult() *backtest.Result {
	return &backtest.Result{
		TotalReturn:      0.25,
		AnnualizedReturn: 0.50,
		MaxDrawdown:      0.10,
		Volatility:       0.15,
		SharpeRatio:      1.23,
		WinRate:          0.6667,
		AvgTradeReturn:   0.05,
		BestTrade:        0.20,
		WorstTrade:       -0.08,
		InitialCapital:   10000,
		FinalEquity:      12500,
		Bars:             30,
		Trades: []domain.Trade{
			{Direction: domain.Long, EntryTime: day(0), ExitTime: day(5),
				EntryPrice: 100, ExitPrice: 110, ReturnPct: 0.10, HoldingDays: 5,
				Status: domain.TradeClosed},
			{Direction: domain.Long, EntryTime: day(10), ExitTime: day(29),
				EntryPrice: 110, ExitPrice: 121, ReturnPct: 0.10, HoldingDays: 19,
				Status: domain.TradeOpen},
		},
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00%"},
		{0.25, "25.00%"},
		{-0.0812, "-8.12%"},
		{1.5, "150.00%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.in); got != tt.want {
			t.Errorf("FormatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryContents(t *testing.T) {
	out := Summary("AAPL", sampleResult())

	for _, want := range []string{
		"Backtest results for AAPL",
		"Total return",
		"25.00%",
		"Annualized return",
		"50.00%",
		"Max drawdown",
		"10.00%",
		"Sharpe ratio",
		"1.23",
		"Win rate",
		"66.67%",
		"$12500.00",
		"2 (1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryAlignment(t *testing.T) {
	out := Summary("SPY", sampleResult())
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Values start at the same column on every metric row.
	col := strings.Index(lines[2], "  $")
	if col < 0 {
		t.Fatalf("no value column in %q", lines[2])
	}
	for _, line := range lines[2:] {
		if len(line) <= col || line[col] != ' ' {
			t.Errorf("misaligned row %q", line)
		}
	}
}

func TestTradeTable(t *testing.T) {
	out := TradeTable(sampleResult().Trades, 0)
	if !strings.Contains(out, "2024-01-01") {
		t.Errorf("missing entry date:\n%s", out)
	}
	if !strings.Contains(out, "LONG") {
		t.Errorf("missing direction:\n%s", out)
	}
	if !strings.Contains(out, "OPEN") || !strings.Contains(out, "CLOSED") {
		t.Errorf("missing status column:\n%s", out)
	}
}

func TestTradeTableLimit(t *testing.T) {
	trades := sampleResult().Trades
	out := TradeTable(trades, 1)
	if strings.Contains(out, "2024-01-01  2024-01-06") {
		t.Errorf("limit kept the oldest trade:\n%s", out)
	}
	if !strings.Contains(out, "2024-01-11") {
		t.Errorf("limit dropped the newest trade:\n%s", out)
	}
}

func TestTradeTableEmpty(t *testing.T) {
	if got := TradeTable(nil, 10); got != "No trades\n" {
		t.Errorf("TradeTable(nil) = %q", got)
	}
}

func TestWriteEquityCSV(t *testing.T) {
	curve := []domain.EquityPoint{
		{Timestamp: day(0), Cash: 10000, PositionValue: 0, TotalEquity: 10000},
		{Timestamp: day(1), Cash: 0, PositionValue: 10100, TotalEquity: 10100},
	}
	var b strings.Builder
	if err := WriteEquityCSV(&b, curve); err != nil {
		t.Fatalf("WriteEquityCSV: %v", err)
	}
	want := "date,cash,position_value,total_equity\n" +
		"2024-01-01,10000.00,0.00,10000.00\n" +
		"2024-01-02,0.00,10100.00,10100.00\n"
	if b.String() != want {
		t.Errorf("CSV = %q, want %q", b.String(), want)
	}
}
