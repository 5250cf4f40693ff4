package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"portfolioDashboard/internal/config"
	"portfolioDashboard/internal/ledger"
	"portfolioDashboard/internal/logx"
	"portfolioDashboard/internal/marketdata"
	"portfolioDashboard/internal/server"
	"portfolioDashboard/internal/valuation"
)

func main() {
	cfg := config.Load()
	logger := logx.New(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create data dir", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	if err := ledger.Open(db, cfg.InitialCash); err != nil {
		logger.Error("init database", "error", err)
		os.Exit(1)
	}

	gate := marketdata.NewCallGate(cfg.ProviderMinInterval)
	fetcher := marketdata.NewYahooClient(gate, logger)
	gateway := marketdata.New(fetcher, gate, marketdata.Options{
		CacheTTL: cfg.QuoteCacheTTL,
		Logger:   logger,
	})
	engine := valuation.NewEngine(gateway, logger)
	svc := ledger.NewService(db, gateway, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(gateway, svc, engine, logger).Router(),
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
