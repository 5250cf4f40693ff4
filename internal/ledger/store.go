package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"portfolioDashboard/internal/valuation"
)

// Open runs migrations and seeds the singleton portfolio row with the
// starting cash balance if the database is fresh.
func Open(db *gorm.DB, initialCash float64) error {
	if err := db.AutoMigrate(&Stock{}, &Holding{}, &Transaction{}, &Portfolio{}); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	var p Portfolio
	err := db.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = Portfolio{CashBalance: decimal.NewFromFloat(initialCash)}
		return db.Create(&p).Error
	}
	return err
}

func (s *Service) ListHoldings(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	err := s.db.WithContext(ctx).Preload("Stock").Order("id").Find(&holdings).Error
	return holdings, err
}

// RefreshHoldings re-prices every held stock from the gateway, then lists
// the holdings. A symbol the gateway cannot price keeps its stored values.
func (s *Service) RefreshHoldings(ctx context.Context) ([]Holding, error) {
	holdings, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range holdings {
		quote := s.quotes.GetQuote(ctx, holdings[i].Stock.Symbol)
		if quote == nil {
			continue
		}
		stock := &holdings[i].Stock
		stock.CurrentPrice = decimal.NewFromFloat(quote.CurrentPrice).Round(2)
		stock.PreviousClose = decimal.NewFromFloat(quote.PreviousClose).Round(2)
		stock.ChangePercent = decimal.NewFromFloat(quote.ChangePercent).Round(2)
		if err := s.db.WithContext(ctx).Save(stock).Error; err != nil {
			return nil, err
		}
	}
	return holdings, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var txns []Transaction
	err := s.db.WithContext(ctx).Order("timestamp desc, id desc").Find(&txns).Error
	return txns, err
}

func (s *Service) GetPortfolio(ctx context.Context) (*Portfolio, error) {
	var p Portfolio
	if err := s.db.WithContext(ctx).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) CashBalance(ctx context.Context) (float64, error) {
	p, err := s.GetPortfolio(ctx)
	if err != nil {
		return 0, err
	}
	return p.CashBalance.InexactFloat64(), nil
}

// HoldingViews shapes the open positions for the valuation engine.
func (s *Service) HoldingViews(ctx context.Context) ([]valuation.Holding, error) {
	holdings, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]valuation.Holding, 0, len(holdings))
	for _, h := range holdings {
		views = append(views, valuation.Holding{
			Symbol:    h.Stock.Symbol,
			Shares:    h.Shares,
			AvgPrice:  h.AvgPrice.InexactFloat64(),
			LastPrice: h.Stock.CurrentPrice.InexactFloat64(),
		})
	}
	return views, nil
}

// TransactionViews shapes the full ledger, oldest first, for the
// valuation engine's replay.
func (s *Service) TransactionViews(ctx context.Context) ([]valuation.Transaction, error) {
	var txns []Transaction
	if err := s.db.WithContext(ctx).Order("timestamp asc, id asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	views := make([]valuation.Transaction, 0, len(txns))
	for _, t := range txns {
		views = append(views, valuation.Transaction{
			Symbol:    t.Symbol,
			Type:      t.Type,
			Shares:    t.Shares,
			Price:     t.Price.InexactFloat64(),
			Amount:    t.TotalAmount.InexactFloat64(),
			Timestamp: t.Timestamp,
		})
	}
	return views, nil
}
