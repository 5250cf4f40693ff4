package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	quoteRange    = "2d" // enough bars to carry a previous close in the meta
	quoteInterval = "1d"
)

// Fetcher is the outbound side of the gateway: raw provider access with no
// caching, no retries and no fallbacks. The Gateway layers those on top.
type Fetcher interface {
	// Quote fetches the current snapshot for one symbol. ChangePercent is
	// left for the caller to derive.
	Quote(ctx context.Context, symbol string) (*Quote, error)
	// History fetches daily closes for the given symbols over a Yahoo range
	// parameter ("5d", "1mo", ...). Symbols missing from the response are
	// simply absent from the returned map.
	History(ctx context.Context, symbols []string, yahooRange string) (map[string][]PricePoint, error)
}

// YahooClient fetches quotes and daily closes from Yahoo's unauthenticated
// chart/spark endpoints. Yahoo serves rate-limit rejections as text bodies
// ("Edge: Too Many Requests") sometimes even with a 200 status, so bodies
// are sniffed before parsing.
type YahooClient struct {
	// BaseURLs are tried in order for each request. Overridable in tests.
	BaseURLs   []string
	HTTPClient *http.Client

	gate   *CallGate
	logger *slog.Logger
}

func NewYahooClient(gate *CallGate, logger *slog.Logger) *YahooClient {
	return &YahooClient{
		BaseURLs: []string{
			"https://query1.finance.yahoo.com",
			"https://query2.finance.yahoo.com",
		},
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		gate:       gate,
		logger:     logger,
	}
}

func (y *YahooClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(symbol)
	var yc yahooChartResp
	path := fmt.Sprintf("/v8/finance/chart/%s?range=%s&interval=%s", symbol, quoteRange, quoteInterval)
	if err := y.getJSON(ctx, path, symbol, &yc); err != nil {
		return nil, err
	}
	if len(yc.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}
	meta := yc.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("no usable price for %s", symbol)
	}
	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = symbol
	}
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Quote{
		Symbol:        symbol,
		Name:          name,
		CurrentPrice:  meta.RegularMarketPrice,
		PreviousClose: prev,
		Currency:      currency,
		MarketCap:     meta.MarketCap,
	}, nil
}

func (y *YahooClient) History(ctx context.Context, symbols []string, yahooRange string) (map[string][]PricePoint, error) {
	joined := strings.ToUpper(strings.Join(symbols, ","))
	var sp yahooSparkResp
	path := fmt.Sprintf("/v7/finance/spark?symbols=%s&range=%s&interval=1d", joined, yahooRange)
	if err := y.getJSON(ctx, path, symbols[0], &sp); err != nil {
		return nil, err
	}
	out := make(map[string][]PricePoint)
	for _, res := range sp.Spark.Result {
		if len(res.Response) == 0 {
			continue
		}
		ts := res.Response[0].Timestamp
		cl := res.Response[0].Close
		var points []PricePoint
		for i := range ts {
			if i >= len(cl) || cl[i] <= 0 {
				continue
			}
			points = append(points, PricePoint{
				Day:   dayOf(time.Unix(ts[i], 0)),
				Close: cl[i],
			})
		}
		if len(points) > 0 {
			out[strings.ToUpper(res.Symbol)] = points
		}
	}
	return out, nil
}

// getJSON performs one provider GET, trying each base URL until one returns
// a parseable JSON body. A rate-limit rejection from the last URL surfaces
// as errRateLimited so the retry loop above can back off.
func (y *YahooClient) getJSON(ctx context.Context, path, referSymbol string, data any) error {
	var lastErr error
	for _, base := range y.BaseURLs {
		// Each physical request honors the global spacing, host failover
		// included.
		if err := y.gate.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", strings.ToUpper(referSymbol)))

		resp, err := y.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read provider response: %w", readErr)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
			lastErr = fmt.Errorf("%s returned 429: %w", req.URL.Host, errRateLimited)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("%s returned %d: %s", req.URL.Host, resp.StatusCode, preview(body))
			continue
		}
		if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
			lastErr = fmt.Errorf("provider returned non-json body: %s", preview(body))
			continue
		}
		if err := json.Unmarshal(body, data); err != nil {
			lastErr = fmt.Errorf("failed to parse provider json: %v; body: %s", err, preview(body))
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no provider endpoints configured")
	}
	return lastErr
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
