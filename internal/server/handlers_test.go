package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"portfolioDashboard/internal/ledger"
	"portfolioDashboard/internal/marketdata"
	"portfolioDashboard/internal/valuation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeProvider serves canned prices in place of the real market data
// endpoints. A nil price map simulates a dead provider.
type fakeProvider struct {
	prices map[string]float64
}

func (f *fakeProvider) Quote(_ context.Context, symbol string) (*marketdata.Quote, error) {
	p, ok := f.prices[strings.ToUpper(symbol)]
	if !ok {
		return nil, errors.New("no such symbol")
	}
	return &marketdata.Quote{
		Symbol:        strings.ToUpper(symbol),
		Name:          symbol + " Inc.",
		CurrentPrice:  p,
		PreviousClose: p,
		Currency:      "USD",
	}, nil
}

func (f *fakeProvider) History(_ context.Context, symbols []string, _ string) (map[string][]marketdata.PricePoint, error) {
	if f.prices == nil {
		return nil, errors.New("provider down")
	}
	out := make(map[string][]marketdata.PricePoint)
	for _, s := range symbols {
		s = strings.ToUpper(s)
		p, ok := f.prices[s]
		if !ok {
			continue
		}
		var points []marketdata.PricePoint
		for i := 9; i >= 0; i-- {
			points = append(points, marketdata.PricePoint{
				Day:   time.Now().UTC().AddDate(0, 0, -i),
				Close: p,
			})
		}
		out[s] = points
	}
	return out, nil
}

func newTestServer(t *testing.T, provider *fakeProvider) (http.Handler, *marketdata.Gateway) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := ledger.Open(db, 100000); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := marketdata.New(provider, marketdata.NewCallGate(0), marketdata.Options{
		Retry:          marketdata.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		PerSymbolPause: time.Nanosecond,
		Logger:         logger,
	})
	svc := ledger.NewService(db, gateway, logger)
	engine := valuation.NewEngine(gateway, logger)
	return New(gateway, svc, engine, logger).Router(), gateway
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
}

func TestIndexListsEndpoints(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{}})
	w := doJSON(t, h, http.MethodGet, "/api/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Endpoints []string `json:"endpoints"`
	}
	decode(t, w, &resp)
	if len(resp.Endpoints) == 0 {
		t.Error("endpoint list is empty")
	}
}

func TestBuyThenSummary(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 200}})

	w := doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 10})
	if w.Code != http.StatusCreated {
		t.Fatalf("buy status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var sum struct {
		TotalPortfolioValue float64 `json:"totalPortfolioValue"`
		TotalGainLoss       float64 `json:"totalGainLoss"`
		CashBalance         float64 `json:"cashBalance"`
		TotalHoldings       int     `json:"totalHoldings"`
	}
	decode(t, w, &sum)
	// 10 shares at 200 plus 98000 cash.
	if sum.TotalPortfolioValue != 100000 || sum.CashBalance != 98000 || sum.TotalHoldings != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.TotalGainLoss != 0 {
		t.Errorf("gain = %v, want 0 at a flat price", sum.TotalGainLoss)
	}
}

func TestBuyValidation(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 200}})

	if w := doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing shares: status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative shares: status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "NOPE", "shares": 1}); w.Code != http.StatusNotFound {
		t.Errorf("unknown symbol: status = %d", w.Code)
	}
}

func TestBuyInsufficientCash(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"BRK": 700000}})
	w := doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "BRK", "shares": 1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSellFlowAndTransactions(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})

	doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 10})
	if w := doJSON(t, h, http.MethodPost, "/api/stock/sell", map[string]any{"symbol": "AAPL", "shares": 10}); w.Code != http.StatusCreated {
		t.Fatalf("sell status = %d, body %s", w.Code, w.Body.String())
	}
	// Over-selling a closed position fails.
	if w := doJSON(t, h, http.MethodPost, "/api/stock/sell", map[string]any{"symbol": "AAPL", "shares": 1}); w.Code != http.StatusBadRequest {
		t.Errorf("oversell status = %d, want 400", w.Code)
	}

	w := doJSON(t, h, http.MethodGet, "/api/transactions", nil)
	var txns []map[string]any
	decode(t, w, &txns)
	if len(txns) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txns))
	}
	// Newest first.
	if txns[0]["transaction_type"] != "SELL" {
		t.Errorf("first entry = %v, want the sell", txns[0]["transaction_type"])
	}

	w = doJSON(t, h, http.MethodGet, "/api/holdings", nil)
	var holdings []map[string]any
	decode(t, w, &holdings)
	if len(holdings) != 0 {
		t.Errorf("holdings = %v, want empty after the full sell", holdings)
	}
}

func TestHoldingCRUD(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"NVDA": 125}})

	w := doJSON(t, h, http.MethodPost, "/api/holding/create", map[string]any{"symbol": "NVDA", "shares": 4, "avg_price": 110})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	decode(t, w, &created)

	path := fmt.Sprintf("/api/holding/update/%d", created.ID)
	if w := doJSON(t, h, http.MethodPut, path, map[string]any{"shares": 6, "avg_price": 115}); w.Code != http.StatusOK {
		t.Errorf("update status = %d, body %s", w.Code, w.Body.String())
	}

	path = fmt.Sprintf("/api/holding/delete/%d", created.ID)
	if w := doJSON(t, h, http.MethodDelete, path, nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodDelete, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", w.Code)
	}
	if w := doJSON(t, h, http.MethodDelete, "/api/holding/delete/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestPerformanceEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})

	doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 10})
	w := doJSON(t, h, http.MethodGet, "/api/performance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}
	decode(t, w, &data)
	if len(data.Values) != 12 || len(data.Labels) != 12 {
		t.Fatalf("points = %d/%d, want 12", len(data.Labels), len(data.Values))
	}
	// Flat price means every sampled day values to the starting balance.
	for i, v := range data.Values {
		if v != 100000 {
			t.Errorf("value[%d] = %v, want 100000", i, v)
		}
	}
}

func TestPerformanceChartPNG(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})

	doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 10})
	w := doJSON(t, h, http.MethodGet, "/api/performance/chart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty image body")
	}
}

func TestAllocationEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})

	doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 10})
	w := doJSON(t, h, http.MethodGet, "/api/allocation", nil)
	var data struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
		Colors []string  `json:"colors"`
	}
	decode(t, w, &data)
	if len(data.Labels) != 3 || data.Labels[0] != "Stocks" {
		t.Errorf("labels = %v", data.Labels)
	}
	if data.Values[0] != 1000 {
		t.Errorf("stocks bucket = %v, want 1000", data.Values[0])
	}
	if len(data.Colors) != 3 {
		t.Errorf("colors = %v", data.Colors)
	}
}

func TestSearchEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{}})

	w := doJSON(t, h, http.MethodGet, "/api/search?q=apple", nil)
	var resp struct {
		Results []struct {
			Symbol string `json:"symbol"`
		} `json:"results"`
	}
	decode(t, w, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Symbol != "AAPL" {
		t.Errorf("results = %+v, want AAPL", resp.Results)
	}

	// No query browses the full popular list.
	w = doJSON(t, h, http.MethodGet, "/api/search", nil)
	decode(t, w, &resp)
	if len(resp.Results) != 20 {
		t.Errorf("empty query results = %d, want the full list", len(resp.Results))
	}
}

func TestStatusAndReset(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})

	doJSON(t, h, http.MethodPost, "/api/stock/add", map[string]any{"symbol": "AAPL", "shares": 1})
	w := doJSON(t, h, http.MethodGet, "/api/status", nil)
	var st struct {
		Healthy            bool    `json:"healthy"`
		CacheSize          int     `json:"cache_size"`
		MinIntervalSeconds float64 `json:"min_interval_seconds"`
	}
	decode(t, w, &st)
	if !st.Healthy || st.CacheSize != 1 {
		t.Errorf("status = %+v", st)
	}

	if w := doJSON(t, h, http.MethodPost, "/api/status/reset", nil); w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/api/status", nil)
	decode(t, w, &st)
	if st.CacheSize != 0 {
		t.Errorf("cache size after reset = %d, want 0", st.CacheSize)
	}
}

func TestProviderHealth(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{prices: map[string]float64{"AAPL": 100}})
	if w := doJSON(t, h, http.MethodGet, "/api/provider/health", nil); w.Code != http.StatusOK {
		t.Errorf("healthy provider status = %d", w.Code)
	}

	down, _ := newTestServer(t, &fakeProvider{prices: nil})
	if w := doJSON(t, down, http.MethodGet, "/api/provider/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("dead provider status = %d, want 503", w.Code)
	}
}
