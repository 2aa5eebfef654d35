// Command kestrel-fetch warms the local price cache for one or more symbols
// and optionally archives the bars to yearly parquet files.
//
// Usage:
//
//	kestrel-fetch [flags] SYMBOL [SYMBOL...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/dataload"
	"kestrel/internal/domain"
	"kestrel/internal/store"
	"kestrel/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath = flag.String("config", os.Getenv("KESTREL_CONFIG"), "path to YAML config file")
		source  = flag.String("source", "", "data source: stooq or alpaca (overrides config)")
		parquet = flag.Bool("parquet", false, "also archive bars to yearly parquet files under the data dir")
		refetch = flag.Bool("refetch", false, "ignore cache freshness and fetch again")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] SYMBOL [SYMBOL...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}
	if *source != "" {
		cfg.Data.Source = *source
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := fetchAll(ctx, cfg, flag.Args(), *parquet, *refetch); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func fetchAll(ctx context.Context, cfg *config.Config, symbols []string, parquet, refetch bool) error {
	cache, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening price cache: %w", err)
	}
	defer cache.Close()

	var src dataload.Source
	switch cfg.Data.Source {
	case "stooq":
		src = dataload.NewStooqSource("")
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca source requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		src = dataload.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Data.RateLimitPerMin)
	default:
		return fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	maxAge := time.Duration(cfg.Data.CacheMaxAgeHours) * time.Hour
	if refetch {
		maxAge = time.Nanosecond
	}
	loader := dataload.NewCachingLoader(src, cache, maxAge)

	var pstore *store.ParquetStore
	if parquet {
		pstore = store.NewParquetStore(cfg.Storage.DataDir)
	}

	failed := 0
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sym = strings.ToUpper(sym)

		bars, err := loader.Load(ctx, sym)
		switch {
		case errors.Is(err, domain.ErrEmptySeries):
			slog.Warn("no data", "symbol", sym)
			failed++
			continue
		case err != nil:
			slog.Error("fetch failed", "symbol", sym, "error", err)
			failed++
			continue
		}
		slog.Info("cached", "symbol", sym, "bars", len(bars),
			"first", bars[0].Timestamp.Format("2006-01-02"),
			"last", bars[len(bars)-1].Timestamp.Format("2006-01-02"))

		if pstore != nil {
			if err := pstore.WriteBars(ctx, bars); err != nil {
				slog.Error("parquet archive failed", "symbol", sym, "error", err)
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(symbols))
	}
	return nil
}
