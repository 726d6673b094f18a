package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

func TestOrderSizerBuy(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.001, MinQty: 0.001, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	quote, err := sizer.Size("BTCUSDT", 50000, domain.MarketSpot, domain.OrderBuy, 100)
	require.NoError(t, err)

	// 100/50000 = 0.002, already on the step grid
	assert.InDelta(t, 0.002, quote.Quantity, 1e-12)
	assert.InDelta(t, 100, quote.Notional, 1e-9)
	assert.InDelta(t, 0.1, quote.EstimatedFee, 1e-9)
}

func TestOrderSizerFloorsToStep(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.01, MinQty: 0.01, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	quote, err := sizer.Size("ETHUSDT", 3000, domain.MarketSpot, domain.OrderBuy, 100)
	require.NoError(t, err)

	// 100/3000 = 0.0333... floored to 0.03
	assert.InDelta(t, 0.03, quote.Quantity, 1e-12)

	steps := quote.Quantity / 0.01
	assert.InDelta(t, math.Round(steps), steps, 1e-9, "quantity must be a whole number of steps")
}

func TestOrderSizerSpotSellShrink(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.00001, MinQty: 0.00001, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	buy, err := sizer.Size("BTCUSDT", 50000, domain.MarketSpot, domain.OrderBuy, 100)
	require.NoError(t, err)
	sell, err := sizer.Size("BTCUSDT", 50000, domain.MarketSpot, domain.OrderSell, 100)
	require.NoError(t, err)

	// The sell is shrunk by commission*1.1 so the full balance clears fees.
	assert.Less(t, sell.Quantity, buy.Quantity)
	assert.InDelta(t, buy.Quantity*(1-0.001*1.1), sell.Quantity, 0.00001)
}

func TestOrderSizerMinNotionalBump(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.001, MinQty: 0.001, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	// 5 USDT budget at 3000 gives notional 4.998, below the 10 floor.
	quote, err := sizer.Size("ETHUSDT", 3000, domain.MarketSpot, domain.OrderBuy, 5)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, quote.Notional, 10.0)
	steps := quote.Quantity / 0.001
	assert.InDelta(t, math.Round(steps), steps, 1e-6)
}

func TestOrderSizerFuturesSellNotShrunk(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.001, MinQty: 0.001, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	buy, err := sizer.Size("BTCUSDT", 50000, domain.MarketFutures, domain.OrderBuy, 100)
	require.NoError(t, err)
	sell, err := sizer.Size("BTCUSDT", 50000, domain.MarketFutures, domain.OrderSell, 100)
	require.NoError(t, err)

	assert.Equal(t, buy.Quantity, sell.Quantity)
}

func TestOrderSizerCloseQuantitySpotLong(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.00001, MinQty: 0.00001, MinNotional: 5}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	// 0.002 held; the buy fee came out of the base asset.
	qty := sizer.CloseQuantity("BTCUSDT", 0.002, domain.MarketSpot, domain.SideLong)
	assert.InDelta(t, 0.00199, qty, 1e-9)
	assert.Less(t, qty, 0.002)
}

func TestOrderSizerCloseQuantityFutures(t *testing.T) {
	meta := &mockMeta{filters: domain.SymbolFilters{QtyStep: 0.001, MinQty: 0.001, MinNotional: 10}}
	sizer := NewOrderSizer(meta, testTradingConfig())

	// Futures fees are charged in the quote currency: no shrink either way.
	assert.Equal(t, 0.002, sizer.CloseQuantity("BTCUSDT", 0.002, domain.MarketFutures, domain.SideLong))
	assert.Equal(t, 0.002, sizer.CloseQuantity("BTCUSDT", 0.002, domain.MarketFutures, domain.SideShort))
}

func TestOrderSizerRejectsBadInput(t *testing.T) {
	meta := &mockMeta{filters: domain.DefaultSymbolFilters}
	sizer := NewOrderSizer(meta, testTradingConfig())

	_, err := sizer.Size("BTCUSDT", 0, domain.MarketSpot, domain.OrderBuy, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = sizer.Size("BTCUSDT", 50000, domain.MarketSpot, domain.OrderBuy, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = sizer.Size("BTCUSDT", 50000, domain.MarketSpot, "HOLD", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = sizer.Size("BTCUSDT", 50000, "margin", domain.OrderBuy, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
}
