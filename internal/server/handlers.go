package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolioDashboard/internal/ledger"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Portfolio Dashboard API",
		"version": "1.0",
		"endpoints": []string{
			"/api/summary", "/api/performance", "/api/performance/chart",
			"/api/allocation", "/api/holdings", "/api/holding/create",
			"/api/holding/update/:id", "/api/holding/delete/:id",
			"/api/stock/add", "/api/stock/sell", "/api/transactions",
			"/api/search", "/api/status", "/api/status/reset",
			"/api/provider/health",
		},
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	holdings, err := s.ledger.HoldingViews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	cash, err := s.ledger.CashBalance(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.engine.CurrentSummary(c.Request.Context(), holdings, cash))
}

func (s *Server) handlePerformance(c *gin.Context) {
	txns, err := s.ledger.TransactionViews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	cash, err := s.ledger.CashBalance(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.engine.HistoricalPerformance(c.Request.Context(), txns, cash))
}

func (s *Server) handleAllocation(c *gin.Context) {
	holdings, err := s.ledger.HoldingViews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.engine.Allocation(holdings))
}

func (s *Server) handleHoldings(c *gin.Context) {
	holdings, err := s.ledger.RefreshHoldings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

type holdingRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Shares   float64 `json:"shares" binding:"required,gt=0"`
	AvgPrice float64 `json:"avg_price"`
}

func (s *Server) handleHoldingCreate(c *gin.Context) {
	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	holding, err := s.ledger.CreateHolding(c.Request.Context(), req.Symbol, req.Shares, req.AvgPrice)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, holding)
}

func (s *Server) handleHoldingUpdate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid holding id"})
		return
	}
	var req struct {
		Shares   float64 `json:"shares" binding:"required,gt=0"`
		AvgPrice float64 `json:"avg_price" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	holding, err := s.ledger.UpdateHolding(c.Request.Context(), uint(id), req.Shares, req.AvgPrice)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, holding)
}

func (s *Server) handleHoldingDelete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid holding id"})
		return
	}
	if err := s.ledger.DeleteHolding(c.Request.Context(), uint(id)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type tradeRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Shares float64 `json:"shares" binding:"required,gt=0"`
}

func (s *Server) handleStockAdd(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := s.ledger.Buy(c.Request.Context(), req.Symbol, req.Shares)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleStockSell(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txn, err := s.ledger.Sell(c.Request.Context(), req.Symbol, req.Shares)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleTransactions(c *gin.Context) {
	txns, err := s.ledger.ListTransactions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// popularSymbols is the static universe the search endpoint matches
// against, so a lookup never costs a provider call.
var popularSymbols = []struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com Inc."},
	{"TSLA", "Tesla Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"META", "Meta Platforms Inc."},
	{"NFLX", "Netflix Inc."},
	{"AMD", "Advanced Micro Devices Inc."},
	{"INTC", "Intel Corporation"},
	{"CRM", "Salesforce Inc."},
	{"ORCL", "Oracle Corporation"},
	{"ADBE", "Adobe Inc."},
	{"PYPL", "PayPal Holdings Inc."},
	{"DIS", "The Walt Disney Company"},
	{"V", "Visa Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"JNJ", "Johnson & Johnson"},
	{"WMT", "Walmart Inc."},
	{"KO", "The Coca-Cola Company"},
}

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.ToUpper(strings.TrimSpace(c.Query("q")))
	var results []gin.H
	for _, p := range popularSymbols {
		// An empty query browses the whole popular list.
		if q == "" || strings.Contains(p.Symbol, q) || strings.Contains(strings.ToUpper(p.Name), q) {
			results = append(results, gin.H{"symbol": p.Symbol, "name": p.Name})
		}
	}
	if results == nil {
		results = []gin.H{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.gateway.Status())
}

func (s *Server) handleStatusReset(c *gin.Context) {
	s.gateway.ResetStatus()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *Server) handleProviderHealth(c *gin.Context) {
	healthy := s.gateway.CheckProviderHealth(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy})
}

// fail maps domain errors onto HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCash), errors.Is(err, ledger.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrUnknownSymbol), errors.Is(err, ledger.ErrHoldingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
