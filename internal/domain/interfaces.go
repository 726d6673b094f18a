package domain

import (
	"context"
	"time"
)

// PriceRange is the recent high/low of a symbol, maintained by the feed.
type PriceRange struct {
	High float64
	Low  float64
}

// PriceSource is the shared read-only price cache. A miss is normal while the
// feed warms up; implementations return ErrPriceUnavailable, callers retry on
// the next tick.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
	RecentRange(ctx context.Context, symbol string) (PriceRange, error)
}

// PriceSink is the write side of the price cache, fed by the live feed.
type PriceSink interface {
	SetLastPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	SetRecentRange(ctx context.Context, symbol string, rng PriceRange) error
}

// SignalSource exposes the latest strategy advice keyed by symbol+strategy.
type SignalSource interface {
	LatestSignal(ctx context.Context, symbol, strategy string) (Signal, error)
}

// OrderFill is one fill of a market order. When fills are present they refine
// the recorded execution price.
type OrderFill struct {
	Price    float64
	Quantity float64
}

// OrderResult is the gateway's response to a market order.
type OrderResult struct {
	OrderID string
	Status  string
	Fills   []OrderFill
}

// ExchangeGateway submits orders to the venue.
type ExchangeGateway interface {
	SubmitMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity float64, marketType MarketType) (*OrderResult, error)
}

// TradeLedger persists closed-trade records. Writes must never block a
// close-out; failures are logged by the caller and not retried synchronously.
type TradeLedger interface {
	AppendTradeRecord(ctx context.Context, rec *TradeRecord) error
	ListTradeRecords(ctx context.Context, limit int) ([]*TradeRecord, error)
}

// SymbolMetadata resolves per-symbol trading filters, falling back to a
// conservative default for unknown symbols.
type SymbolMetadata interface {
	Filters(symbol string) SymbolFilters
}
