// Command kestrel runs a trading-strategy backtest over the daily price
// history of a single symbol and prints a performance report.
//
// Usage:
//
//	kestrel [flags] SYMBOL
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

	"kestrel/internal/backtest"
	"kestrel/internal/config"
	"kestrel/internal/dataload"
	"kestrel/internal/domain"
	"kestrel/internal/report"
	"kestrel/internal/store"
	"kestrel/internal/strategy"
	"kestrel/internal/strategy/builtins"
	"kestrel/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath      = flag.String("config", os.Getenv("KESTREL_CONFIG"), "path to YAML config file")
		strategyName = flag.String("strategy", "ema-cross", "strategy to run")
		fast         = flag.Int("fast", 0, "fast moving-average window (overrides config)")
		slow         = flag.Int("slow", 0, "slow moving-average window (overrides config)")
		capital      = flag.Float64("capital", 0, "initial capital (overrides config)")
		costRate     = flag.Float64("cost", -1, "transaction cost rate per fill, e.g. 0.001 (overrides config)")
		nextOpen     = flag.Bool("next-open", false, "execute signals at the next bar's open instead of the same bar's close")
		source       = flag.String("source", "", "data source: stooq or alpaca (overrides config)")
		cacheDir     = flag.String("cache-dir", "", "directory for cached price data (overrides config)")
		csvPath      = flag.String("csv", "", "write the equity curve to this CSV file")
		export       = flag.Bool("export", false, "archive equity curve and trades as parquet under the data dir")
		tradeLimit   = flag.Int("trades", 20, "number of recent trades to print, 0 for all")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] SYMBOL\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	symbol := strings.ToUpper(flag.Arg(0))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}
	applyFlags(cfg, *fast, *slow, *capital, *costRate, *source, *cacheDir)

	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	policy := backtest.ExecSameBarClose
	if *nextOpen {
		policy = backtest.ExecNextBarOpen
	}

	if err := backtestSymbol(ctx, cfg, symbol, *strategyName, policy, *csvPath, *export, *tradeLimit); err != nil {
		if errors.Is(err, domain.ErrEmptySeries) {
			fmt.Fprintf(os.Stderr, "no price data available for %s\n", symbol)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		return 1
	}
	return 0
}

// applyFlags folds command-line overrides into the loaded configuration.
func applyFlags(cfg *config.Config, fast, slow int, capital, costRate float64, source, cacheDir string) {
	if fast > 0 {
		cfg.Backtest.FastWindow = fast
	}
	if slow > 0 {
		cfg.Backtest.SlowWindow = slow
	}
	if capital > 0 {
		cfg.Backtest.InitialCapital = capital
	}
	if costRate >= 0 {
		cfg.Backtest.CostRate = costRate
	}
	if source != "" {
		cfg.Data.Source = source
	}
	if cacheDir != "" {
		cfg.Storage.DataDir = cacheDir
		cfg.Storage.SQLitePath = cacheDir + "/kestrel.db"
	}
}

func backtestSymbol(ctx context.Context, cfg *config.Config, symbol, strategyName string, policy backtest.ExecutionPolicy, csvPath string, export bool, tradeLimit int) error {
	reg := builtinRegistry(cfg)
	strat, ok := reg.Get(strategyName)
	if !ok {
		return fmt.Errorf("unknown strategy %q (available: %s)", strategyName, strings.Join(reg.List(), ", "))
	}

	cache, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening price cache: %w", err)
	}
	defer cache.Close()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	loader := dataload.NewCachingLoader(src, cache, time.Duration(cfg.Data.CacheMaxAgeHours)*time.Hour)

	bars, err := loader.Load(ctx, symbol)
	if err != nil {
		return err
	}

	engine, err := backtest.New(cfg.Backtest.InitialCapital, cfg.Backtest.CostRate, policy)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := engine.Run(ctx, bars, strat)
	if err != nil {
		return fmt.Errorf("running backtest: %w", err)
	}
	slog.Info("backtest complete",
		"symbol", symbol,
		"strategy", strat.Name(),
		"bars", res.Bars,
		"trades", len(res.Trades),
		"elapsed", time.Since(start))

	fmt.Println(report.Summary(symbol, res))
	fmt.Println(report.TradeTable(res.Trades, tradeLimit))

	if csvPath != "" {
		if err := writeEquityCSV(csvPath, res); err != nil {
			return err
		}
		slog.Info("equity curve written", "path", csvPath)
	}

	if export {
		pstore := store.NewParquetStore(cfg.Storage.DataDir)
		equityPath, tradesPath, err := pstore.ExportResult(symbol, res)
		if err != nil {
			return fmt.Errorf("exporting result: %w", err)
		}
		slog.Info("result archived", "equity", equityPath, "trades", tradesPath)
	}
	return nil
}

// builtinRegistry registers the built-in strategies with windows taken from
// the configuration.
func builtinRegistry(cfg *config.Config) *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register(builtins.NewEMACross(cfg.Backtest.FastWindow, cfg.Backtest.SlowWindow))
	reg.Register(builtins.NewSMACross(cfg.Backtest.FastWindow, cfg.Backtest.SlowWindow))
	return reg
}

func buildSource(cfg *config.Config) (dataload.Source, error) {
	switch cfg.Data.Source {
	case "stooq":
		return dataload.NewStooqSource(""), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("alpaca source requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		return dataload.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Data.RateLimitPerMin), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

func writeEquityCSV(path string, res *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteEquityCSV(f, res.EquityCurve); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
