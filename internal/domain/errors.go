package domain

import "errors"

var (
	// ErrInvalidParameters rejects bad sizing/PnL inputs before any mutation.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrDuplicatePosition refuses a second open long for a spot symbol.
	ErrDuplicatePosition = errors.New("open position already exists for symbol")

	// ErrNoOpenPosition refuses a closing sell with nothing to close.
	ErrNoOpenPosition = errors.New("no open position for symbol")

	// ErrPriceUnavailable is the normal, retryable price-cache miss.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrExchange wraps order submission failures from the gateway.
	ErrExchange = errors.New("exchange error")

	// ErrLedger wraps trade-ledger write failures.
	ErrLedger = errors.New("ledger error")
)
