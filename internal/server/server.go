// Package server exposes the portfolio API over HTTP.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"portfolioDashboard/internal/ledger"
	"portfolioDashboard/internal/marketdata"
	"portfolioDashboard/internal/valuation"
)

type Server struct {
	gateway *marketdata.Gateway
	ledger  *ledger.Service
	engine  *valuation.Engine
	logger  *slog.Logger
}

func New(gateway *marketdata.Gateway, svc *ledger.Service, engine *valuation.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gateway: gateway, ledger: svc, engine: engine, logger: logger}
}

// Router builds the gin engine with all API routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	{
		api.GET("/", s.handleIndex)
		api.GET("/summary", s.handleSummary)
		api.GET("/performance", s.handlePerformance)
		api.GET("/performance/chart", s.handlePerformanceChart)
		api.GET("/allocation", s.handleAllocation)
		api.GET("/holdings", s.handleHoldings)
		api.POST("/holding/create", s.handleHoldingCreate)
		api.PUT("/holding/update/:id", s.handleHoldingUpdate)
		api.DELETE("/holding/delete/:id", s.handleHoldingDelete)
		api.POST("/stock/add", s.handleStockAdd)
		api.POST("/stock/sell", s.handleStockSell)
		api.GET("/transactions", s.handleTransactions)
		api.GET("/search", s.handleSearch)
		api.GET("/status", s.handleStatus)
		api.POST("/status/reset", s.handleStatusReset)
		api.GET("/provider/health", s.handleProviderHealth)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
