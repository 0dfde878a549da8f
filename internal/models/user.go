package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is a registered account. Username and email are stored lower-cased
// and kept unique by the database, not by check-then-insert.
type User struct {
	gorm.Model
	Username       string          `gorm:"uniqueIndex;not null"`
	Email          string          `gorm:"uniqueIndex;not null"`
	PasswordHash   string          `gorm:"not null"` // bcrypt, never rendered
	Cash           decimal.Decimal `gorm:"type:numeric;not null"`
	TotalSpendFees decimal.Decimal `gorm:"type:numeric;not null"`
	// Cumulative fee revenue. Only the house account accrues this;
	// it stays zero for everyone else.
	TotalIncomeBusiness decimal.Decimal `gorm:"type:numeric;not null"`
}
