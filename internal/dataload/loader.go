// Package dataload retrieves historical daily price series from upstream
// data sources, with a local cache so repeated backtests over the same symbol
// stay deterministic and off the network.
package dataload

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"kestrel/internal/domain"
	"kestrel/internal/store"
)

// DefaultCacheMaxAge is how long cached bars are considered fresh before the
// upstream source is consulted again.
const DefaultCacheMaxAge = 12 * time.Hour

// Source fetches the full daily price history for a symbol from an upstream
// provider.
type Source interface {
	// Name returns the provider identifier.
	Name() string

	// Fetch returns all available daily bars for symbol, oldest first. It
	// returns domain.ErrEmptySeries (possibly wrapped) when the provider has
	// no data for the symbol.
	Fetch(ctx context.Context, symbol string) ([]domain.Bar, error)
}

// CachingLoader wraps a Source with a BarCache and a freshness window. The
// cache handle is injected at construction and owned by the caller; the
// loader never opens or closes storage itself.
type CachingLoader struct {
	source Source
	cache  store.BarCache
	maxAge time.Duration
	log    *slog.Logger
}

// NewCachingLoader creates a loader reading through cache with the given
// freshness window. A non-positive maxAge falls back to DefaultCacheMaxAge.
func NewCachingLoader(source Source, cache store.BarCache, maxAge time.Duration) *CachingLoader {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &CachingLoader{
		source: source,
		cache:  cache,
		maxAge: maxAge,
		log:    slog.Default().With("component", "loader", "source", source.Name()),
	}
}

// Load returns the daily price series for symbol, sorted and validated. Bars
// come from the cache while it is fresh; otherwise they are fetched from the
// source and written back. For a given symbol, Load is deterministic while
// the cache stays fresh.
func (l *CachingLoader) Load(ctx context.Context, symbol string) ([]domain.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}

	if bars, ok := l.cached(ctx, symbol); ok {
		l.log.Debug("cache hit", "symbol", symbol, "bars", len(bars))
		return bars, nil
	}

	bars, err := l.source.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching %s from %s: %w", symbol, l.source.Name(), err)
	}
	bars, err = normalize(symbol, bars)
	if err != nil {
		return nil, err
	}

	if err := l.cache.WriteBars(ctx, bars); err != nil {
		return nil, fmt.Errorf("caching bars for %s: %w", symbol, err)
	}
	if err := l.cache.MarkFetched(ctx, symbol, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("recording fetch for %s: %w", symbol, err)
	}
	l.log.Info("fetched", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// cached returns the cached series when it exists and is still fresh.
func (l *CachingLoader) cached(ctx context.Context, symbol string) ([]domain.Bar, bool) {
	last, err := l.cache.LastFetched(ctx, symbol)
	if err != nil || last.IsZero() || time.Since(last) >= l.maxAge {
		return nil, false
	}
	bars, err := l.cache.ReadBars(ctx, symbol, time.Time{}, time.Now().AddDate(1, 0, 0))
	if err != nil || len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// normalize sorts bars by timestamp, drops duplicate timestamps (keeping the
// later record), and validates the resulting series.
func normalize(symbol string, bars []domain.Bar) ([]domain.Bar, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no data for %q", domain.ErrEmptySeries, symbol)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	out := bars[:0]
	for _, b := range bars {
		b.Symbol = symbol
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(b.Timestamp) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}

	if err := domain.ValidateBars(out); err != nil {
		return nil, fmt.Errorf("series for %s: %w", symbol, err)
	}
	return out, nil
}
