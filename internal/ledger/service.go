package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"portfolioDashboard/internal/marketdata"
)

var (
	ErrUnknownSymbol      = errors.New("ledger: unknown symbol")
	ErrInsufficientCash   = errors.New("ledger: insufficient cash")
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
	ErrHoldingNotFound    = errors.New("ledger: holding not found")
)

// QuoteSource is the slice of the gateway the service needs to price trades.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) *marketdata.Quote
}

type Service struct {
	db     *gorm.DB
	quotes QuoteSource
	logger *slog.Logger
}

func NewService(db *gorm.DB, quotes QuoteSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, quotes: quotes, logger: logger}
}

// Buy executes a market buy at the live quote. The stock upsert, holding
// update, transaction row and cash movement commit atomically; any
// failure leaves all four untouched.
func (s *Service) Buy(ctx context.Context, symbol string, shares float64) (*Transaction, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("ledger: shares must be positive, got %v", shares)
	}
	quote := s.quotes.GetQuote(ctx, symbol)
	if quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	price := decimal.NewFromFloat(quote.CurrentPrice)
	cost := price.Mul(decimal.NewFromFloat(shares)).Round(2)

	var txn *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := lockPortfolio(tx)
		if err != nil {
			return err
		}
		if portfolio.CashBalance.LessThan(cost) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash, cost, portfolio.CashBalance)
		}

		stock, err := upsertStock(tx, quote)
		if err != nil {
			return err
		}

		var holding Holding
		err = tx.Where("stock_id = ?", stock.ID).First(&holding).Error
		switch {
		case err == nil:
			// Weighted average cost across the old and new lots.
			oldCost := holding.AvgPrice.Mul(decimal.NewFromFloat(holding.Shares))
			newShares := holding.Shares + shares
			holding.AvgPrice = oldCost.Add(cost).Div(decimal.NewFromFloat(newShares)).Round(2)
			holding.Shares = newShares
			if err := tx.Save(&holding).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			holding = Holding{
				StockID:      stock.ID,
				Shares:       shares,
				AvgPrice:     price,
				PurchaseDate: time.Now(),
			}
			if err := tx.Create(&holding).Error; err != nil {
				return err
			}
		default:
			return err
		}

		txn = &Transaction{
			Symbol:      stock.Symbol,
			Type:        TypeBuy,
			Shares:      shares,
			Price:       price,
			TotalAmount: cost,
			Timestamp:   time.Now(),
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		portfolio.CashBalance = portfolio.CashBalance.Sub(cost)
		return tx.Save(portfolio).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("buy executed", "symbol", txn.Symbol, "shares", shares, "price", price, "cost", cost)
	return txn, nil
}

// Sell executes a market sell at the live quote. Selling the entire
// position removes the holding row; selling more than held fails without
// touching anything.
func (s *Service) Sell(ctx context.Context, symbol string, shares float64) (*Transaction, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("ledger: shares must be positive, got %v", shares)
	}
	quote := s.quotes.GetQuote(ctx, symbol)
	if quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	price := decimal.NewFromFloat(quote.CurrentPrice)
	proceeds := price.Mul(decimal.NewFromFloat(shares)).Round(2)

	var txn *Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stock, err := upsertStock(tx, quote)
		if err != nil {
			return err
		}

		var holding Holding
		if err := tx.Where("stock_id = ?", stock.ID).First(&holding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no position in %s", ErrInsufficientShares, stock.Symbol)
			}
			return err
		}
		if shares > holding.Shares {
			return fmt.Errorf("%w: have %v, tried to sell %v", ErrInsufficientShares, holding.Shares, shares)
		}

		remaining := holding.Shares - shares
		if remaining == 0 {
			if err := tx.Delete(&holding).Error; err != nil {
				return err
			}
		} else {
			holding.Shares = remaining
			if err := tx.Save(&holding).Error; err != nil {
				return err
			}
		}

		txn = &Transaction{
			Symbol:      stock.Symbol,
			Type:        TypeSell,
			Shares:      shares,
			Price:       price,
			TotalAmount: proceeds,
			Timestamp:   time.Now(),
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		portfolio, err := lockPortfolio(tx)
		if err != nil {
			return err
		}
		portfolio.CashBalance = portfolio.CashBalance.Add(proceeds)
		return tx.Save(portfolio).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("sell executed", "symbol", txn.Symbol, "shares", shares, "price", price, "proceeds", proceeds)
	return txn, nil
}

// CreateHolding records a position directly, without moving cash. Used by
// the manual holding management endpoints.
func (s *Service) CreateHolding(ctx context.Context, symbol string, shares, avgPrice float64) (*Holding, error) {
	quote := s.quotes.GetQuote(ctx, symbol)
	if quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	var holding Holding
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stock, err := upsertStock(tx, quote)
		if err != nil {
			return err
		}
		holding = Holding{
			StockID:      stock.ID,
			Shares:       shares,
			AvgPrice:     decimal.NewFromFloat(avgPrice).Round(2),
			PurchaseDate: time.Now(),
		}
		if err := tx.Create(&holding).Error; err != nil {
			return err
		}
		return tx.Preload("Stock").First(&holding, holding.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

// UpdateHolding rewrites shares and average price on an existing holding.
func (s *Service) UpdateHolding(ctx context.Context, id uint, shares, avgPrice float64) (*Holding, error) {
	var holding Holding
	if err := s.db.WithContext(ctx).Preload("Stock").First(&holding, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHoldingNotFound
		}
		return nil, err
	}
	holding.Shares = shares
	holding.AvgPrice = decimal.NewFromFloat(avgPrice).Round(2)
	if err := s.db.WithContext(ctx).Save(&holding).Error; err != nil {
		return nil, err
	}
	return &holding, nil
}

// DeleteHolding removes a holding without a compensating cash movement.
func (s *Service) DeleteHolding(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Holding{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// lockPortfolio fetches the singleton portfolio row for update.
func lockPortfolio(tx *gorm.DB) (*Portfolio, error) {
	var p Portfolio
	if err := tx.First(&p).Error; err != nil {
		return nil, fmt.Errorf("ledger: load portfolio: %w", err)
	}
	return &p, nil
}

// upsertStock creates or refreshes the stock row from a live quote.
func upsertStock(tx *gorm.DB, quote *marketdata.Quote) (*Stock, error) {
	var stock Stock
	err := tx.Where("symbol = ?", quote.Symbol).First(&stock).Error
	switch {
	case err == nil:
		stock.Name = quote.Name
		stock.CurrentPrice = decimal.NewFromFloat(quote.CurrentPrice).Round(2)
		stock.PreviousClose = decimal.NewFromFloat(quote.PreviousClose).Round(2)
		stock.ChangePercent = decimal.NewFromFloat(quote.ChangePercent).Round(2)
		stock.Currency = quote.Currency
		stock.MarketCap = quote.MarketCap
		if err := tx.Save(&stock).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		stock = Stock{
			Symbol:        quote.Symbol,
			Name:          quote.Name,
			CurrentPrice:  decimal.NewFromFloat(quote.CurrentPrice).Round(2),
			PreviousClose: decimal.NewFromFloat(quote.PreviousClose).Round(2),
			ChangePercent: decimal.NewFromFloat(quote.ChangePercent).Round(2),
			Currency:      quote.Currency,
			MarketCap:     quote.MarketCap,
		}
		if err := tx.Create(&stock).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &stock, nil
}
