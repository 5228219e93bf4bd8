// Package finance looks up market quotes for ticker symbols. Symbols the
// provider does not price are treated as invalid tickers and dropped.
package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	quoteBaseURL   = "https://query1.finance.yahoo.com"
	quoteTimeout   = 30 * time.Second
	quoteBatchSize = 100
	quoteWorkers   = 4
	quoteUserAgent = "autodd/1.0"
)

// quoteFields are requested per symbol.
var quoteFields = []string{
	"regularMarketPrice",
	"regularMarketPreviousClose",
	"regularMarketChangePercent",
	"fiftyDayAverage",
	"regularMarketVolume",
	"averageDailyVolume3Month",
	"floatShares",
}

// Quote is the market data attached to a ranked ticker.
type Quote struct {
	Symbol          string  `json:"symbol"`
	Price           float64 `json:"price"`
	DayChangePct    float64 `json:"day_change_pct"`
	FiftyDayPct     float64 `json:"fifty_day_change_pct"`
	VolumeChangePct float64 `json:"volume_change_pct"`
	FloatShares     int64   `json:"float_shares,omitempty"`
}

// Config configures the quote client.
type Config struct {
	BaseURL   string
	BatchSize int // symbols per request
	Workers   int // concurrent requests
	Timeout   time.Duration
}

// Client fetches quotes in batches.
type Client struct {
	baseURL   string
	batchSize int
	workers   int
	client    *http.Client
}

// New creates a quote client, filling zero config values with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = quoteBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = quoteBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = quoteWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = quoteTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []rawQuote `json:"result"`
	} `json:"quoteResponse"`
}

type rawQuote struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	FiftyDayAverage            *float64 `json:"fiftyDayAverage"`
	RegularMarketVolume        *float64 `json:"regularMarketVolume"`
	AverageDailyVolume3Month   *float64 `json:"averageDailyVolume3Month"`
	FloatShares                *float64 `json:"floatShares"`
}

// Quotes returns a quote for every symbol the provider prices. Batches run
// concurrently up to the configured worker count; any failed batch fails the call.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]Quote, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < len(symbols); start += c.batchSize {
		batch := symbols[start:min(start+c.batchSize, len(symbols))]
		g.Go(func() error {
			quotes, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, q := range quotes {
				out[q.Symbol] = q
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, symbols []string) ([]Quote, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("fields", strings.Join(quoteFields, ","))
	q.Set("formatted", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v7/finance/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quotes: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 404 means none of the symbols exist.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quotes: HTTP %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("quotes: decode: %w", err)
	}

	quotes := make([]Quote, 0, len(body.QuoteResponse.Result))
	for _, raw := range body.QuoteResponse.Result {
		if q, ok := raw.quote(); ok {
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

// quote derives the reported figures. A missing or zero price is invalid.
func (r rawQuote) quote() (Quote, bool) {
	price := value(r.RegularMarketPrice)
	if r.Symbol == "" || price == 0 {
		return Quote{}, false
	}

	q := Quote{Symbol: r.Symbol, Price: price}

	switch prev := value(r.RegularMarketPreviousClose); {
	case r.RegularMarketChangePercent != nil:
		q.DayChangePct = *r.RegularMarketChangePercent
	case prev != 0:
		q.DayChangePct = percentChange(price, prev)
	}

	if avg := value(r.FiftyDayAverage); avg > 0 {
		q.FiftyDayPct = percentChange(price, avg)
	}
	if vol, avg := value(r.RegularMarketVolume), value(r.AverageDailyVolume3Month); vol != 0 && avg != 0 {
		q.VolumeChangePct = percentChange(vol, avg)
	}
	q.FloatShares = int64(value(r.FloatShares))
	return q, true
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func percentChange(now, base float64) float64 {
	return (now - base) / base * 100
}

// Affordable reports whether q is at or under maxPrice; zero means no limit.
func (q Quote) Affordable(maxPrice float64) bool {
	return maxPrice <= 0 || q.Price <= maxPrice
}
