// Package ledger owns the persistent portfolio state: tracked stocks,
// open holdings, the immutable transaction log, and the cash balance.
// All writes that move cash or shares go through Service and run inside a
// single database transaction.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is the latest known market data for a tracked symbol. Rows are
// upserted from gateway quotes on every trade.
type Stock struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"size:10;uniqueIndex;not null" json:"symbol"`
	Name          string          `gorm:"size:128;not null" json:"name"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"current_price"`
	PreviousClose decimal.Decimal `gorm:"type:decimal(16,2)" json:"previous_close"`
	ChangePercent decimal.Decimal `gorm:"type:decimal(8,2)" json:"change_percent"`
	Currency      string          `gorm:"size:8;default:USD" json:"currency"`
	MarketCap     int64           `json:"market_cap"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Holding is one open position. At most one row per stock; the row is
// removed when the position is fully sold.
type Holding struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	StockID      uint            `gorm:"uniqueIndex;not null" json:"stock_id"`
	Stock        Stock           `gorm:"foreignKey:StockID" json:"stock"`
	Shares       float64         `gorm:"not null" json:"shares"`
	AvgPrice     decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"avg_price"`
	PurchaseDate time.Time       `json:"purchase_date"`
}

// Transaction is one immutable ledger entry. Rows are only ever appended.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Symbol      string          `gorm:"size:10;index;not null" json:"symbol"`
	Type        string          `gorm:"size:4;not null" json:"transaction_type"` // BUY or SELL
	Shares      float64         `gorm:"not null" json:"shares"`
	Price       decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"price"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"total_amount"`
	Timestamp   time.Time       `gorm:"index" json:"timestamp"`
}

// Portfolio is a singleton row holding the cash balance.
type Portfolio struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CashBalance decimal.Decimal `gorm:"type:decimal(16,2);not null" json:"cash_balance"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const (
	TypeBuy  = "BUY"
	TypeSell = "SELL"
)
