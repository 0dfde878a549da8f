package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position is a user's aggregated holding of one ticker: total cost basis,
// share count and the derived average price per share. A position is created
// on the first buy, updated in place, and deleted when the amount reaches
// exactly zero.
type Position struct {
	gorm.Model
	Ticker    string          `gorm:"uniqueIndex:idx_owner_ticker;not null"`
	StockName string          `gorm:"not null"`
	Owner     string          `gorm:"uniqueIndex:idx_owner_ticker;not null"` // username
	CostBasis decimal.Decimal `gorm:"type:numeric;not null"`
	Amount    int             `gorm:"not null"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric;not null"`
}
