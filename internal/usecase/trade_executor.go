package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// TradeExecutor submits market orders through the exchange gateway.
type TradeExecutor struct {
	gateway domain.ExchangeGateway
}

func NewTradeExecutor(gateway domain.ExchangeGateway) *TradeExecutor {
	return &TradeExecutor{gateway: gateway}
}

func (e *TradeExecutor) Execute(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, marketType domain.MarketType) (*domain.OrderResult, error) {
	if side != domain.OrderBuy && side != domain.OrderSell {
		return nil, fmt.Errorf("%w: side %q", domain.ErrInvalidParameters, side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %f", domain.ErrInvalidParameters, quantity)
	}
	return e.gateway.SubmitMarketOrder(ctx, symbol, side, quantity, marketType)
}

// FillPrice returns the volume-weighted fill price of an order result, or the
// fallback when the venue reported no fills.
func FillPrice(result *domain.OrderResult, fallback float64) float64 {
	if result == nil || len(result.Fills) == 0 {
		return fallback
	}
	var notional, quantity float64
	for _, f := range result.Fills {
		notional += f.Price * f.Quantity
		quantity += f.Quantity
	}
	if quantity == 0 {
		return fallback
	}
	return notional / quantity
}
