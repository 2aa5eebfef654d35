package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"kestrel/internal/backtest"
	"kestrel/internal/domain"
)

// Compile-time interface check.
var _ BarStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore using year-partitioned Parquet files on
// disk, and additionally exports backtest output (equity curve and trade log)
// as Parquet for downstream analysis.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data
// directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// EquityRecord is the Parquet schema for exported equity curves.
type EquityRecord struct {
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Cash          float64 `parquet:"cash"`
	PositionValue float64 `parquet:"position_value"`
	TotalEquity   float64 `parquet:"total_equity"`
}

// TradeRecord is the Parquet schema for exported trade logs.
type TradeRecord struct {
	EntryTime   int64   `parquet:"entry_time,timestamp(millisecond)"` // Unix ms
	ExitTime    int64   `parquet:"exit_time,timestamp(millisecond)"`  // Unix ms
	Direction   string  `parquet:"direction"`
	EntryPrice  float64 `parquet:"entry_price"`
	ExitPrice   float64 `parquet:"exit_price"`
	Quantity    float64 `parquet:"quantity"`
	PnL         float64 `parquet:"pnl"`
	ReturnPct   float64 `parquet:"return_pct"`
	HoldingDays int32   `parquet:"holding_days"`
	Status      string  `parquet:"status"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/daily/<SYMBOL>/<YYYY>.parquet
//
// Existing records for the same year are merged and deduplicated by
// timestamp, preferring incoming records.
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Timestamp.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    strings.ToUpper(b.Symbol),
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time
// range.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(strings.ToUpper(symbol), year))
		if err != nil {
			// No file for this year.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				bars = append(bars, domain.Bar{
					Symbol:    r.Symbol,
					Timestamp: ts,
					Open:      r.Open,
					High:      r.High,
					Low:       r.Low,
					Close:     r.Close,
					Volume:    r.Volume,
				})
			}
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the archive.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// Backtest result export
// ---------------------------------------------------------------------------

// ExportResult writes the equity curve and trade log of a backtest result to
// Parquet files under <DataDir>/results/<SYMBOL>/, returning the two paths
// written (equity, trades).
func (s *ParquetStore) ExportResult(symbol string, res *backtest.Result) (equityPath, tradesPath string, err error) {
	dir := filepath.Join(s.DataDir, "results", strings.ToUpper(symbol))

	equity := make([]EquityRecord, len(res.EquityCurve))
	for i, p := range res.EquityCurve {
		equity[i] = EquityRecord{
			Timestamp:     p.Timestamp.UnixMilli(),
			Cash:          p.Cash,
			PositionValue: p.PositionValue,
			TotalEquity:   p.TotalEquity,
		}
	}
	equityPath = filepath.Join(dir, "equity.parquet")
	if err := writeParquetFile(equityPath, equity); err != nil {
		return "", "", fmt.Errorf("writing equity curve: %w", err)
	}

	trades := make([]TradeRecord, len(res.Trades))
	for i, tr := range res.Trades {
		trades[i] = TradeRecord{
			EntryTime:   tr.EntryTime.UnixMilli(),
			ExitTime:    tr.ExitTime.UnixMilli(),
			Direction:   tr.Direction.String(),
			EntryPrice:  tr.EntryPrice,
			ExitPrice:   tr.ExitPrice,
			Quantity:    tr.Quantity,
			PnL:         tr.PnL,
			ReturnPct:   tr.ReturnPct,
			HoldingDays: int32(tr.HoldingDays),
			Status:      string(tr.Status),
		}
	}
	tradesPath = filepath.Join(dir, "trades.parquet")
	if err := writeParquetFile(tradesPath, trades); err != nil {
		return "", "", fmt.Errorf("writing trade log: %w", err)
	}

	return equityPath, tradesPath, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "daily", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
