package marketdata

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Gateway is the single door to the market data provider. It layers a TTL
// quote cache, the global call gate, retry-with-backoff and a multi-strategy
// history fallback over the raw Fetcher so that callers almost always get
// some usable price. Provider failures are logged and degraded, never
// surfaced as errors to the route layer.
type Gateway struct {
	fetcher        Fetcher
	cache          *quoteCache
	gate           *CallGate
	policy         RetryPolicy
	perSymbolPause time.Duration
	logger         *slog.Logger

	mu            sync.Mutex
	failStreak    int
	lastSynthetic bool
}

// Options tunes a Gateway. Zero values pick the production defaults.
type Options struct {
	CacheTTL       time.Duration
	Retry          RetryPolicy
	PerSymbolPause time.Duration // upper bound of the random delay between per-symbol calls
	Logger         *slog.Logger
}

func New(fetcher Fetcher, gate *CallGate, opts Options) *Gateway {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PerSymbolPause == 0 {
		opts.PerSymbolPause = 500 * time.Millisecond
	}
	return &Gateway{
		fetcher:        fetcher,
		cache:          newQuoteCache(opts.CacheTTL),
		gate:           gate,
		policy:         opts.Retry,
		perSymbolPause: opts.PerSymbolPause,
		logger:         opts.Logger,
	}
}

// GetQuote returns the current snapshot for one symbol, or nil when no
// usable price could be obtained. The cache is consulted first; a miss goes
// to the provider through the retry loop.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) *Quote {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil
	}
	if q, ok := g.cache.get(symbol); ok {
		return &q
	}

	var q *Quote
	err := withRetry(ctx, g.policy, g.logger, "quote "+symbol, func() error {
		var err error
		q, err = g.fetcher.Quote(ctx, symbol)
		return err
	})
	if err != nil {
		g.recordFailure()
		g.logger.Warn("quote fetch failed", "symbol", symbol, "err", err)
		return nil
	}
	g.recordSuccess()
	q.ChangePercent = changePercent(q.CurrentPrice, q.PreviousClose)
	g.cache.set(symbol, *q)
	return q
}

// GetHistory returns daily closes for the given symbols over the requested
// period. Strategies are tried in order until one yields data: a batched
// request, the same batch over an escalated period, per-symbol requests,
// per-symbol over one month, and finally synthetic data. Only an empty
// symbol list returns nil.
func (g *Gateway) GetHistory(ctx context.Context, symbols []string, period string) *Series {
	cleaned := cleanSymbols(symbols)
	if len(cleaned) == 0 {
		return nil
	}
	r := normalizeRange(period)

	if s := g.tryBatch(ctx, cleaned, r, "batch"); !s.Empty() {
		return s
	}
	if esc := escalateRange(r); esc != r {
		g.logger.Info("history batch empty, escalating period", "from", r, "to", esc)
		if s := g.tryBatch(ctx, cleaned, esc, "escalated batch"); !s.Empty() {
			return s
		}
	}
	g.logger.Info("history batch strategies exhausted, trying per-symbol", "symbols", cleaned)
	if s := g.tryPerSymbol(ctx, cleaned, r); !s.Empty() {
		return s
	}
	if r != "1mo" {
		g.logger.Info("per-symbol history empty, retrying with 1mo period")
		if s := g.tryPerSymbol(ctx, cleaned, "1mo"); !s.Empty() {
			return s
		}
	}

	g.logger.Warn("provider unreachable for history, serving synthetic data", "symbols", cleaned, "period", r)
	g.recordFailure()
	s := syntheticSeries(cleaned, r)
	g.mu.Lock()
	g.lastSynthetic = true
	g.mu.Unlock()
	return s
}

// CheckProviderHealth probes the provider with a minimal one-symbol,
// one-day request and reports whether it returned usable data.
func (g *Gateway) CheckProviderHealth(ctx context.Context) bool {
	obs, err := g.fetcher.History(ctx, []string{"AAPL"}, "1d")
	return err == nil && len(obs) > 0
}

// Status is a diagnostic view of the gateway's shared state.
type Status struct {
	Healthy              bool    `json:"healthy"`
	CacheSize            int     `json:"cache_size"`
	LastCallAgeSeconds   float64 `json:"last_call_age_seconds"` // -1 when no call was made yet
	MinIntervalSeconds   float64 `json:"min_interval_seconds"`
	ConsecutiveFailures  int     `json:"consecutive_failures"`
	LastHistorySynthetic bool    `json:"last_history_synthetic"`
}

func (g *Gateway) Status() Status {
	g.mu.Lock()
	failStreak := g.failStreak
	lastSynthetic := g.lastSynthetic
	g.mu.Unlock()

	age := -1.0
	if d, ok := g.gate.LastCallAge(); ok {
		age = d.Seconds()
	}
	return Status{
		Healthy:              failStreak == 0,
		CacheSize:            g.cache.size(),
		LastCallAgeSeconds:   age,
		MinIntervalSeconds:   g.gate.Interval().Seconds(),
		ConsecutiveFailures:  failStreak,
		LastHistorySynthetic: lastSynthetic,
	}
}

// ResetStatus clears the cache, the call gate and the failure counters.
func (g *Gateway) ResetStatus() {
	g.cache.clear()
	g.gate.Reset()
	g.mu.Lock()
	g.failStreak = 0
	g.lastSynthetic = false
	g.mu.Unlock()
}

func (g *Gateway) tryBatch(ctx context.Context, symbols []string, yahooRange, strategy string) *Series {
	var obs map[string][]PricePoint
	err := withRetry(ctx, g.policy, g.logger, "history "+strategy, func() error {
		var err error
		obs, err = g.fetcher.History(ctx, symbols, yahooRange)
		return err
	})
	if err != nil {
		g.logger.Warn("history strategy failed", "strategy", strategy, "period", yahooRange, "err", err)
		return nil
	}
	if len(obs) == 0 {
		return nil
	}
	g.recordSuccess()
	return BuildSeries(obs)
}

func (g *Gateway) tryPerSymbol(ctx context.Context, symbols []string, yahooRange string) *Series {
	obs := make(map[string][]PricePoint)
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && g.perSymbolPause > 0 {
			// Randomized spacing on top of the gate, to avoid a regular
			// request rhythm the provider could key on.
			pause := time.Duration(rand.Int63n(int64(g.perSymbolPause)))
			select {
			case <-time.After(pause):
			case <-ctx.Done():
			}
		}
		var points map[string][]PricePoint
		err := withRetry(ctx, g.policy, g.logger, "history "+symbol, func() error {
			var err error
			points, err = g.fetcher.History(ctx, []string{symbol}, yahooRange)
			return err
		})
		if err != nil {
			// Individual symbol failures are tolerated; the rest of the
			// table is still useful.
			g.logger.Warn("per-symbol history failed", "symbol", symbol, "err", err)
			continue
		}
		if p, ok := points[symbol]; ok {
			obs[symbol] = p
		}
	}
	if len(obs) == 0 {
		return nil
	}
	g.recordSuccess()
	return BuildSeries(obs)
}

func (g *Gateway) recordFailure() {
	g.mu.Lock()
	g.failStreak++
	g.mu.Unlock()
}

func (g *Gateway) recordSuccess() {
	g.mu.Lock()
	g.failStreak = 0
	g.lastSynthetic = false
	g.mu.Unlock()
}

// changePercent derives the percent move from the previous close, defined
// as 0 when the previous close is absent or zero.
func changePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return math.Round((current-previous)/previous*100*100) / 100
}

func cleanSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// normalizeRange maps an API period to a Yahoo range parameter.
func normalizeRange(period string) string {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "1d":
		return "1d"
	case "5d", "1w", "1wk":
		return "5d"
	case "1mo", "1m":
		return "1mo"
	case "3mo", "3m":
		return "3mo"
	case "6mo", "6m":
		return "6mo"
	case "2y":
		return "2y"
	case "5y":
		return "5y"
	case "max":
		return "max"
	default:
		return "1y"
	}
}

// escalateRange picks the next-longer period for the escalation ladder.
func escalateRange(yahooRange string) string {
	switch yahooRange {
	case "1d":
		return "5d"
	case "5d":
		return "1mo"
	case "1mo":
		return "3mo"
	case "3mo":
		return "6mo"
	case "6mo":
		return "1y"
	case "1y":
		return "2y"
	default:
		return "3mo"
	}
}
