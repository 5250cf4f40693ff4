// Package valuation turns the transaction ledger plus live (or fallback)
// prices into point-in-time and current portfolio valuations. It is a
// stateless pipeline: all state arrives as arguments, prices come from the
// market data gateway.
package valuation

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"portfolioDashboard/internal/marketdata"
)

// Fixed placeholder buckets for asset classes the tracker does not manage.
// A known simplification carried over from the original dashboard: only
// the Stocks bucket is computed.
const (
	placeholderBondsValue = 28447.00
	placeholderCashValue  = 12450.00
)

// PriceSource is the slice of the gateway the engine needs.
type PriceSource interface {
	GetHistory(ctx context.Context, symbols []string, period string) *marketdata.Series
}

// Holding is the engine's view of one position.
type Holding struct {
	Symbol    string
	Shares    float64
	AvgPrice  float64
	LastPrice float64 // last stored price, used when the batch result misses the symbol
}

// Transaction is one immutable ledger entry.
type Transaction struct {
	Symbol    string
	Type      string // BUY or SELL
	Shares    float64
	Price     float64
	Amount    float64 // Shares * Price at execution time
	Timestamp time.Time
}

// Summary is the current portfolio overview.
type Summary struct {
	TotalPortfolioValue float64 `json:"totalPortfolioValue"`
	TotalGainLoss       float64 `json:"totalGainLoss"`
	CashBalance         float64 `json:"cashBalance"`
	TotalHoldings       int     `json:"totalHoldings"`
}

// ChartData is a label/value pairing shaped for the frontend charts.
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors,omitempty"`
}

type Engine struct {
	prices PriceSource
	logger *slog.Logger
}

func NewEngine(prices PriceSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{prices: prices, logger: logger}
}

// CurrentSummary values every holding at its live price and adds cash.
// Prices for all symbols come from a single batched gateway call; a symbol
// missing from the batch falls back to the holding's last stored price.
func (e *Engine) CurrentSummary(ctx context.Context, holdings []Holding, cash float64) Summary {
	if len(holdings) == 0 {
		return Summary{TotalPortfolioValue: cash, CashBalance: cash}
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	series := e.prices.GetHistory(ctx, symbols, "1d")

	var stockValue, costBasis float64
	for _, h := range holdings {
		price := h.LastPrice
		if p, ok := series.Last(h.Symbol); ok {
			price = p
		} else {
			e.logger.Info("no batch price, using stored price", "symbol", h.Symbol)
		}
		stockValue += h.Shares * price
		costBasis += h.Shares * h.AvgPrice
	}
	return Summary{
		TotalPortfolioValue: stockValue + cash,
		TotalGainLoss:       stockValue - costBasis,
		CashBalance:         cash,
		TotalHoldings:       len(holdings),
	}
}

// Allocation buckets portfolio value by asset class. Stocks is computed
// from stored prices; Bonds and Cash are fixed placeholders.
func (e *Engine) Allocation(holdings []Holding) ChartData {
	var stocksValue float64
	for _, h := range holdings {
		stocksValue += h.Shares * h.LastPrice
	}
	return ChartData{
		Labels: []string{"Stocks", "Bonds", "Cash"},
		Values: []float64{round2(stocksValue), placeholderBondsValue, placeholderCashValue},
		Colors: []string{"#4285f4", "#6fa8f7", "#a3c4f9"},
	}
}

// HistoricalPerformance reconstructs total portfolio value for every
// calendar day from the first transaction to today, then resamples to the
// fixed chart width. The cash balance at the period start is backed out of
// the current cash by reversing every transaction's cash effect; each day
// is then valued by replaying the ledger up to it and pricing positions
// with the as-of close. Returns an empty series when there are no
// transactions or the first one is dated in the future.
func (e *Engine) HistoricalPerformance(ctx context.Context, transactions []Transaction, currentCash float64) ChartData {
	if len(transactions) == 0 {
		return ChartData{Labels: []string{}, Values: []float64{}}
	}
	txns := make([]Transaction, len(transactions))
	copy(txns, transactions)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Timestamp.Before(txns[j].Timestamp) })

	now := time.Now()
	start := txns[0].Timestamp
	if start.After(now) {
		e.logger.Info("first transaction is in the future, returning empty performance data")
		return ChartData{Labels: []string{}, Values: []float64{}}
	}

	// Reverse all cash effects to find the balance on the first day:
	// a BUY had removed cash, so add it back; a SELL had added it.
	initialCash := currentCash
	for _, t := range txns {
		switch t.Type {
		case "BUY":
			initialCash += t.Amount
		case "SELL":
			initialCash -= t.Amount
		}
	}

	seen := make(map[string]struct{})
	var symbols []string
	for _, t := range txns {
		if _, ok := seen[t.Symbol]; !ok {
			seen[t.Symbol] = struct{}{}
			symbols = append(symbols, t.Symbol)
		}
	}
	series := e.prices.GetHistory(ctx, symbols, "1y")
	if series.Empty() {
		return ChartData{Labels: []string{}, Values: []float64{}}
	}

	var labels []string
	var values []float64
	for day := dayOf(start); !day.After(dayOf(now)); day = day.AddDate(0, 0, 1) {
		cash := initialCash
		shares := make(map[string]float64)
		for _, t := range txns {
			if dayOf(t.Timestamp).After(day) {
				continue
			}
			switch t.Type {
			case "BUY":
				shares[t.Symbol] += t.Shares
				cash -= t.Amount
			case "SELL":
				shares[t.Symbol] -= t.Shares
				cash += t.Amount
			}
		}

		total := cash
		for symbol, count := range shares {
			if count <= 0 {
				continue
			}
			if price, ok := series.AsOf(symbol, day); ok {
				total += count * price
			}
		}
		labels = append(labels, day.Format("Jan 02, 2006"))
		values = append(values, round2(total))
	}

	labels, values = resampleToChartWidth(labels, values)
	return ChartData{Labels: labels, Values: values}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
