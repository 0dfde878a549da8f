// Package ledger implements buying and selling of simulated shares and the
// fee settlement that credits the house account. Every trade touches one
// position row and two user rows; the writes happen inside a single
// database transaction so a failure cannot debit cash without the matching
// position update.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-trade-go/internal/config"
	"paper-trade-go/internal/models"
	"paper-trade-go/internal/quotes"
	"paper-trade-go/internal/validate"
)

// Service carries the dependencies for trading operations.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	quotes quotes.Provider
	cfg    *config.Trading
}

// NewService creates a ledger service.
func NewService(logger *zap.Logger, db *gorm.DB, provider quotes.Provider, cfg *config.Trading) *Service {
	return &Service{logger: logger, db: db, quotes: provider, cfg: cfg}
}

// TradeResult summarises an executed trade for the flash message.
type TradeResult struct {
	Ticker   string
	Quantity int
	Price    decimal.Decimal // live price per share
	Gross    decimal.Decimal // price * quantity
	Fee      decimal.Decimal // zero on sell
	Total    decimal.Decimal // cash debited on buy, credited on sell
}

// Fee is the charge on a buy: a flat amount plus a rate on the gross cost,
// rounded to cents. Sells carry no fee.
func (s *Service) Fee(gross decimal.Decimal) decimal.Decimal {
	flat := decimal.NewFromFloat(s.cfg.FeeFlat)
	rate := decimal.NewFromFloat(s.cfg.FeeRate)
	return flat.Add(rate.Mul(gross)).Round(2)
}

// Buy purchases quantity shares of ticker at the live price. The gross cost
// plus fee is debited from the buyer, the fee is credited to the house
// account, and the position is created or averaged up, all atomically.
// Nothing is charged when validation fails.
func (s *Service) Buy(ctx context.Context, username, ticker, quantity string) (*TradeResult, error) {
	qty, err := validate.Quantity(quantity)
	if err != nil {
		return nil, err
	}
	ticker = strings.ToLower(ticker)

	var stock models.StockInfo
	if err := s.db.Where("ticker = ?", ticker).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to look up stock %q: %w", ticker, err)
	}

	price, err := s.quotes.LivePrice(ctx, ticker)
	if err != nil {
		if errors.Is(err, quotes.ErrUnknownTicker) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to fetch live price for %q: %w", ticker, err)
	}

	gross := price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	fee := s.Fee(gross)
	total := gross.Add(fee)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var pos models.Position
		err := tx.Where("owner = ? AND ticker = ?", username, ticker).First(&pos).Error
		switch {
		case err == nil:
			pos.CostBasis = pos.CostBasis.Add(gross)
			pos.Amount += qty
			pos.AvgPrice = pos.CostBasis.Div(decimal.NewFromInt(int64(pos.Amount))).Round(2)
			if err := tx.Save(&pos).Error; err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			pos = models.Position{
				Ticker:    ticker,
				StockName: stock.Name,
				Owner:     username,
				CostBasis: gross,
				Amount:    qty,
				AvgPrice:  gross.Div(decimal.NewFromInt(int64(qty))).Round(2),
			}
			if err := tx.Create(&pos).Error; err != nil {
				return fmt.Errorf("failed to create position: %w", err)
			}
		default:
			return fmt.Errorf("failed to look up position: %w", err)
		}

		if err := s.adjustBalances(tx, username, total.Neg(), fee); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Executed buy",
		zap.String("username", username),
		zap.String("ticker", ticker),
		zap.Int("quantity", qty),
		zap.String("total", total.StringFixed(2)))

	return &TradeResult{Ticker: ticker, Quantity: qty, Price: price, Gross: gross, Fee: fee, Total: total}, nil
}

// Sell disposes of quantity shares from the given position at the live
// price. The cost basis is reduced proportionally (avg price * quantity)
// so the average price of the remaining shares is unchanged; the proceeds
// are credited to the seller with no fee. Selling the full amount deletes
// the position row.
func (s *Service) Sell(ctx context.Context, username string, positionID uint, quantity string) (*TradeResult, error) {
	qty, err := validate.Quantity(quantity)
	if err != nil {
		return nil, err
	}

	// Ownership and ticker are needed before the transaction to price the
	// sale; the quote call must not hold a database transaction open.
	pos, err := s.Position(username, positionID)
	if err != nil {
		return nil, err
	}
	if qty > pos.Amount {
		return nil, ErrOversell
	}

	price, err := s.quotes.LivePrice(ctx, pos.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live price for %q: %w", pos.Ticker, err)
	}
	proceeds := price.Mul(decimal.NewFromInt(int64(qty))).Round(2)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := tx.Where("id = ? AND owner = ?", positionID, username).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPositionNotFound
			}
			return fmt.Errorf("failed to look up position: %w", err)
		}
		if qty > p.Amount {
			return ErrOversell
		}

		p.CostBasis = p.CostBasis.Sub(p.AvgPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2))
		p.Amount -= qty

		if p.Amount == 0 {
			// Hard delete: a soft-deleted row would keep holding the
			// (owner, ticker) unique index and block the next buy.
			if err := tx.Unscoped().Delete(&p).Error; err != nil {
				return fmt.Errorf("failed to delete position: %w", err)
			}
		} else {
			if err := tx.Save(&p).Error; err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		}

		if err := s.adjustBalances(tx, username, proceeds, decimal.Zero); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Executed sell",
		zap.String("username", username),
		zap.String("ticker", pos.Ticker),
		zap.Int("quantity", qty),
		zap.String("proceeds", proceeds.StringFixed(2)))

	return &TradeResult{Ticker: pos.Ticker, Quantity: qty, Price: price, Gross: proceeds, Fee: decimal.Zero, Total: proceeds}, nil
}

// adjustBalances applies a cash delta and a fee to the trading user and,
// when the fee is non-zero, credits the house account's business income.
func (s *Service) adjustBalances(tx *gorm.DB, username string, cashDelta, fee decimal.Decimal) error {
	var user models.User
	if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
		return fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	user.Cash = user.Cash.Add(cashDelta)
	user.TotalSpendFees = user.TotalSpendFees.Add(fee)
	if err := tx.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to update balances for %q: %w", username, err)
	}

	if fee.IsZero() {
		return nil
	}

	var house models.User
	if err := tx.Where("username = ?", s.cfg.HouseAccount).First(&house).Error; err != nil {
		return fmt.Errorf("failed to look up house account: %w", err)
	}
	house.TotalIncomeBusiness = house.TotalIncomeBusiness.Add(fee)
	if err := tx.Save(&house).Error; err != nil {
		return fmt.Errorf("failed to credit house account: %w", err)
	}
	return nil
}

// Portfolio returns the user's positions ordered by ticker.
func (s *Service) Portfolio(username string) ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.Where("owner = ?", username).Order("ticker").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return positions, nil
}

// Position returns one position if it exists and belongs to the user.
func (s *Service) Position(username string, id uint) (*models.Position, error) {
	var pos models.Position
	if err := s.db.Where("id = ? AND owner = ?", id, username).First(&pos).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to look up position: %w", err)
	}
	return &pos, nil
}

// Stock returns the reference row for a ticker.
func (s *Service) Stock(ticker string) (*models.StockInfo, error) {
	var stock models.StockInfo
	if err := s.db.Where("ticker = ?", strings.ToLower(ticker)).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to look up stock: %w", err)
	}
	return &stock, nil
}

// Stocks returns all reference rows ordered by ticker, for the home page.
func (s *Service) Stocks() ([]models.StockInfo, error) {
	var stocks []models.StockInfo
	if err := s.db.Order("ticker").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	return stocks, nil
}

// MaxAffordable is the largest quantity whose gross cost plus fee fits in
// cash. It is a UI hint only; the buy path does not enforce it.
func (s *Service) MaxAffordable(cash, price decimal.Decimal) int {
	if price.Sign() <= 0 || cash.Sign() <= 0 {
		return 0
	}

	cost := func(q int64) decimal.Decimal {
		gross := price.Mul(decimal.NewFromInt(q)).Round(2)
		return gross.Add(s.Fee(gross))
	}

	// Close-form estimate, then settle on the exact boundary.
	rate := decimal.NewFromFloat(s.cfg.FeeRate)
	flat := decimal.NewFromFloat(s.cfg.FeeFlat)
	perShare := price.Mul(decimal.NewFromInt(1).Add(rate))
	q := cash.Sub(flat).Div(perShare).IntPart()
	if q < 0 {
		q = 0
	}
	if q > 10000 {
		q = 10000 // order size cap, same bound the quantity validator enforces
	}
	for q > 0 && cost(q).GreaterThan(cash) {
		q--
	}
	for q < 10000 && cost(q+1).LessThanOrEqual(cash) {
		q++
	}
	return int(q)
}
