// Package store defines storage interfaces for persisting and retrieving
// daily price bars, plus Parquet export of backtest output.
package store

import (
	"context"
	"time"

	"kestrel/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing any existing bars with
	// the same (symbol, timestamp).
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// ordered by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// BarCache is a BarStore that also tracks when each symbol was last fetched
// from its upstream source, so the loader can apply a freshness window.
type BarCache interface {
	BarStore

	// LastFetched returns the recorded fetch time for symbol, or the zero
	// time if the symbol has never been fetched.
	LastFetched(ctx context.Context, symbol string) (time.Time, error)

	// MarkFetched records that symbol was fetched from upstream at t.
	MarkFetched(ctx context.Context, symbol string, t time.Time) error
}
