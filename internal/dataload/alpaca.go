package dataload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"kestrel/internal/domain"
	"kestrel/internal/util"
)

// alpacaHistoryStart bounds daily-bar requests; Alpaca's SIP feed has no
// usable equities data before 2016.
var alpacaHistoryStart = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

// AlpacaSource fetches daily bars from the Alpaca market-data API.
type AlpacaSource struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
}

var _ Source = (*AlpacaSource)(nil)

// NewAlpacaSource creates an Alpaca source with the given credentials. An
// empty dataURL uses Alpaca's default endpoint. Requests are rate limited to
// stay inside the free-tier quota.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, requestsPerMinute int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(requestsPerMinute),
	}
}

func (s *AlpacaSource) Name() string { return "alpaca" }

// Fetch returns daily bars for symbol up to yesterday. Symbols unknown to
// Alpaca come back as an empty bar list, reported as domain.ErrEmptySeries.
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string) ([]domain.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     alpacaHistoryStart,
		End:       time.Now().UTC().AddDate(0, 0, -1),
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}
	if len(alpacaBars) == 0 {
		return nil, fmt.Errorf("%w: alpaca has no data for %q", domain.ErrEmptySeries, symbol)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ab.Timestamp,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	return bars, nil
}
