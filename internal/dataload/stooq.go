package dataload

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kestrel/internal/domain"
	"kestrel/internal/util"
)

const defaultStooqBaseURL = "https://stooq.com/q/d/l/"

// StooqSource downloads daily OHLCV history from the free Stooq CSV endpoint.
// US symbols are requested with the ".us" suffix unless the symbol already
// carries a region qualifier.
type StooqSource struct {
	baseURL string
	client  *http.Client
}

var _ Source = (*StooqSource)(nil)

// NewStooqSource creates a Stooq source. An empty baseURL uses the public
// endpoint.
func NewStooqSource(baseURL string) *StooqSource {
	if baseURL == "" {
		baseURL = defaultStooqBaseURL
	}
	return &StooqSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *StooqSource) Name() string { return "stooq" }

// Fetch downloads the full daily history for symbol. Stooq answers unknown
// symbols with a "No data" body, which is reported as domain.ErrEmptySeries.
func (s *StooqSource) Fetch(ctx context.Context, symbol string) ([]domain.Bar, error) {
	u, err := s.requestURL(symbol)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = util.Retry(ctx, 3, time.Second, func() error {
		var err error
		body, err = s.get(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "No data") {
		return nil, fmt.Errorf("%w: stooq has no data for %q", domain.ErrEmptySeries, symbol)
	}

	return parseStooqCSV(symbol, strings.NewReader(text))
}

func (s *StooqSource) requestURL(symbol string) (string, error) {
	sym := strings.ToLower(strings.TrimSpace(symbol))
	if sym == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}
	// Stooq expects a region suffix; bare symbols are treated as US listings.
	if !strings.Contains(sym, ".") {
		sym += ".us"
	}
	q := url.Values{}
	q.Set("s", sym)
	q.Set("i", "d")
	return s.baseURL + "?" + q.Encode(), nil
}

func (s *StooqSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stooq returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseStooqCSV decodes the Date,Open,High,Low,Close,Volume layout. Rows with
// unparseable fields are rejected rather than skipped so a truncated download
// never silently yields a shorter series.
func parseStooqCSV(symbol string, r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading stooq header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("stooq response missing %q column", name)
		}
	}

	var bars []domain.Bar
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading stooq row: %w", err)
		}
		bar, err := stooqRow(symbol, col, rec)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func stooqRow(symbol string, col map[string]int, rec []string) (domain.Bar, error) {
	ts, err := time.Parse("2006-01-02", rec[col["date"]])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing stooq date %q: %w", rec[col["date"]], err)
	}

	price := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(rec[col[name]], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing stooq %s %q: %w", name, rec[col[name]], err)
		}
		return v, nil
	}

	var bar domain.Bar
	bar.Symbol = strings.ToUpper(symbol)
	bar.Timestamp = ts.UTC()
	if bar.Open, err = price("open"); err != nil {
		return domain.Bar{}, err
	}
	if bar.High, err = price("high"); err != nil {
		return domain.Bar{}, err
	}
	if bar.Low, err = price("low"); err != nil {
		return domain.Bar{}, err
	}
	if bar.Close, err = price("close"); err != nil {
		return domain.Bar{}, err
	}

	// Volume is absent for some instruments (indices) and occasionally
	// fractional in Stooq exports.
	if i, ok := col["volume"]; ok && i < len(rec) && rec[i] != "" {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing stooq volume %q: %w", rec[i], err)
		}
		bar.Volume = int64(v)
	}
	return bar, nil
}
