package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paper-trade-go/internal/config"
	"paper-trade-go/internal/models"
)

// defaultStocks is the reference data seeded into stock_info when the table
// is empty. The set mirrors what the stock pages link to; it is read-only to
// the rest of the system.
var defaultStocks = []models.StockInfo{
	{Ticker: "uber", Name: "Uber Technologies, Inc.", Description: "Ride-hailing, delivery and freight platform."},
	{Ticker: "aapl", Name: "Apple Inc.", Description: "Consumer electronics, software and services."},
	{Ticker: "msft", Name: "Microsoft Corporation", Description: "Software, cloud computing and devices."},
	{Ticker: "tsla", Name: "Tesla, Inc.", Description: "Electric vehicles and energy storage."},
	{Ticker: "amzn", Name: "Amazon.com, Inc.", Description: "E-commerce, cloud computing and logistics."},
}

// NewDatabase opens the database, migrates the schema and seeds the house
// account and stock reference data.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	// TranslateError turns driver unique-constraint failures into
	// gorm.ErrDuplicatedKey, which the account service relies on.
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema and populates initial data.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.User{}, &models.StockInfo{}, &models.Position{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Seed the house account that collects trading fees.
	house := models.User{
		Username:            cfg.Trading.HouseAccount,
		Email:               cfg.Trading.HouseAccount + "@localhost",
		PasswordHash:        "!", // not loginable until a real hash is set out-of-band
		Cash:                decimal.Zero,
		TotalSpendFees:      decimal.Zero,
		TotalIncomeBusiness: decimal.Zero,
	}
	if err := db.FirstOrCreate(&house, models.User{Username: cfg.Trading.HouseAccount}).Error; err != nil {
		return fmt.Errorf("failed to seed house account %q: %w", cfg.Trading.HouseAccount, err)
	}

	// Seed stock reference data.
	for _, stock := range defaultStocks {
		if err := db.FirstOrCreate(&stock, models.StockInfo{Ticker: stock.Ticker}).Error; err != nil {
			return fmt.Errorf("failed to seed stock %q: %w", stock.Ticker, err)
		}
	}

	return nil
}
