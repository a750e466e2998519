package domain

import "errors"

// Sentinel errors for domain-level error handling. Placement failures are
// rejected locally before any order leaves the process.
var (
	ErrInvalidOrder       = errors.New("invalid_order")
	ErrInsufficientFunds  = errors.New("insufficient_funds")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrUnknownOrder       = errors.New("unknown_order")
	ErrOrderSinkClosed    = errors.New("order_sink_closed")
	ErrFeedClosed         = errors.New("feed_closed")
)
