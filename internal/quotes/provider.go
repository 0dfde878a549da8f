package quotes

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnknownTicker is returned when the provider has no data for a symbol.
var ErrUnknownTicker = errors.New("unknown ticker")

// Status is the market trading state reported by the provider.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusClosed     Status = "CLOSED"
	StatusPreMarket  Status = "PRE"
	StatusPostMarket Status = "POST"
	StatusUnknown    Status = "UNKNOWN"
)

// Field is one labelled row of the quote table. Order matters: the table is
// rendered as an ordered list split into two columns.
type Field struct {
	Label string
	Value string
}

// Provider is the quote data boundary. The rest of the system only consumes
// these five calls; it never talks to the quote API directly.
type Provider interface {
	// LivePrice returns the current market price for a ticker.
	LivePrice(ctx context.Context, ticker string) (decimal.Decimal, error)

	// PreviousClose returns the prior session's closing price.
	PreviousClose(ctx context.Context, ticker string) (decimal.Decimal, error)

	// CurrentChange returns the live price minus the previous close.
	CurrentChange(ctx context.Context, ticker string) (decimal.Decimal, error)

	// QuoteTable returns the ordered quote summary rows for a ticker.
	QuoteTable(ctx context.Context, ticker string) ([]Field, error)

	// MarketStatus reports whether the market is currently trading.
	MarketStatus(ctx context.Context) (Status, error)
}
