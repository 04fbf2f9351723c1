package models

import "errors"

var (
	// ErrInvalidOrder rejects an open whose stop/target sit on the wrong
	// side of the entry price for the requested direction.
	ErrInvalidOrder = errors.New("invalid order: stop/target on wrong side of entry")

	// ErrTradeNotFound is returned when a trade ID is unknown to the ledger.
	ErrTradeNotFound = errors.New("trade not found")

	// ErrProviderUnavailable indicates every provider in the chain failed a
	// cycle for a symbol. The symbol goes stale; nothing crashes.
	ErrProviderUnavailable = errors.New("all price providers unavailable")

	// ErrInsufficientHistory indicates not enough candles to compute
	// sub-scores. Signal generation degrades to HOLD instead of failing.
	ErrInsufficientHistory = errors.New("insufficient candle history")
)
