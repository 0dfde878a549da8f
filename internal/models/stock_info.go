package models

import "gorm.io/gorm"

// StockInfo is static reference data about a tradable stock.
// Rows are seeded at startup and never written by request handlers.
type StockInfo struct {
	gorm.Model
	Ticker      string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
}
