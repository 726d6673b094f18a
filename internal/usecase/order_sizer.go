package usecase

import (
	"fmt"
	"math"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// OrderQuote is the result of sizing one order.
type OrderQuote struct {
	Quantity     float64
	Notional     float64
	EstimatedFee float64
}

// OrderSizer computes executable order quantities from a trade-amount budget.
// It is deterministic and free of side effects: same inputs, same quote.
type OrderSizer struct {
	meta    domain.SymbolMetadata
	trading config.TradingConfig
}

func NewOrderSizer(meta domain.SymbolMetadata, trading config.TradingConfig) *OrderSizer {
	return &OrderSizer{meta: meta, trading: trading}
}

// Size computes (quantity, notional, estimated fee) for a market order.
//
// A spot SELL is a liquidation of a previously bought quantity, so it is
// pre-shrunk by commission*1.1 to survive fee rounding without an
// insufficient-balance rejection. The quantity is floored to the symbol's lot
// step and clamped to its minimum; if the resulting notional is still below
// the symbol's floor, the quantity is rebuilt from the floor with a 1% buffer
// and rounded up.
func (s *OrderSizer) Size(symbol string, price float64, marketType domain.MarketType, side domain.OrderSide, tradeAmount float64) (*OrderQuote, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: price %f", domain.ErrInvalidParameters, price)
	}
	if tradeAmount <= 0 {
		return nil, fmt.Errorf("%w: trade amount %f", domain.ErrInvalidParameters, tradeAmount)
	}
	if side != domain.OrderBuy && side != domain.OrderSell {
		return nil, fmt.Errorf("%w: side %q", domain.ErrInvalidParameters, side)
	}
	commission, err := s.trading.CommissionRate(marketType)
	if err != nil {
		return nil, err
	}

	filters := s.meta.Filters(symbol)

	quantity := tradeAmount / price

	if marketType == domain.MarketSpot && side == domain.OrderSell {
		// 10% safety margin on top of the fee so the full balance clears.
		quantity *= 1 - commission*1.1
	}

	quantity = floorToStep(quantity, filters.QtyStep)
	if quantity < filters.MinQty {
		quantity = filters.MinQty
	}

	notional := quantity * price
	if notional < filters.MinNotional {
		quantity = ceilToStep(filters.MinNotional/price*1.01, filters.QtyStep)
		notional = quantity * price
	}

	return &OrderQuote{
		Quantity:     quantity,
		Notional:     notional,
		EstimatedFee: notional * commission,
	}, nil
}

// CloseQuantity sizes the order that flattens an open position. On a spot
// long the entry fee was taken from the base asset, so the sellable balance
// is below the recorded quantity; selling it all would be rejected for
// insufficient balance. The same commission*1.1 shrink used for sized sells
// applies, then the lot-step floor. Futures positions close at the recorded
// quantity.
func (s *OrderSizer) CloseQuantity(symbol string, quantity float64, marketType domain.MarketType, side domain.Side) float64 {
	if marketType == domain.MarketSpot && side == domain.SideLong {
		if commission, err := s.trading.CommissionRate(marketType); err == nil {
			quantity *= 1 - commission*1.1
		}
	}
	return floorToStep(quantity, s.meta.Filters(symbol).QtyStep)
}

const stepEpsilon = 1e-9

func floorToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	return math.Floor(quantity/step+stepEpsilon) * step
}

func ceilToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	return math.Ceil(quantity/step-stepEpsilon) * step
}
