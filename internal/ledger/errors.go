package ledger

import "errors"

var (
	// ErrStockNotFound is a buy against a ticker outside the reference data.
	ErrStockNotFound = errors.New("stock not found")

	// ErrPositionNotFound is a sell against a position the user does not hold.
	ErrPositionNotFound = errors.New("position not found")

	// ErrOversell is a sell for more shares than the position holds.
	// Holdings never go negative.
	ErrOversell = errors.New("cannot sell more shares than owned")
)
