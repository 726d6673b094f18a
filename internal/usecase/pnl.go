package usecase

import (
	"fmt"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// PnLBreakdown is a fee-aware realized PnL computation.
type PnLBreakdown struct {
	PnL        float64
	PnLPercent float64
	EntryFee   float64
	ExitFee    float64
	TotalFees  float64
}

// PnLAccountant computes realized PnL with the market type's commission
// applied symmetrically to entry and exit notional. Pure and deterministic.
type PnLAccountant struct {
	trading config.TradingConfig
}

func NewPnLAccountant(trading config.TradingConfig) *PnLAccountant {
	return &PnLAccountant{trading: trading}
}

// Realized computes the closed-trade PnL. PnL percent is relative to the
// entry notional plus the entry fee, i.e. the capital actually committed.
func (a *PnLAccountant) Realized(entryPrice, exitPrice, quantity float64, side domain.Side, marketType domain.MarketType) (*PnLBreakdown, error) {
	if entryPrice <= 0 || exitPrice <= 0 {
		return nil, fmt.Errorf("%w: prices %f/%f", domain.ErrInvalidParameters, entryPrice, exitPrice)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %f", domain.ErrInvalidParameters, quantity)
	}
	if side != domain.SideLong && side != domain.SideShort {
		return nil, fmt.Errorf("%w: side %q", domain.ErrInvalidParameters, side)
	}
	commission, err := a.trading.CommissionRate(marketType)
	if err != nil {
		return nil, err
	}

	entryNotional := quantity * entryPrice
	exitNotional := quantity * exitPrice
	entryFee := entryNotional * commission
	exitFee := exitNotional * commission

	var pnl float64
	if side == domain.SideLong {
		pnl = (exitNotional - entryNotional) - (entryFee + exitFee)
	} else {
		pnl = (entryNotional - exitNotional) - (entryFee + exitFee)
	}

	invested := entryNotional + entryFee

	return &PnLBreakdown{
		PnL:        pnl,
		PnLPercent: pnl / invested * 100,
		EntryFee:   entryFee,
		ExitFee:    exitFee,
		TotalFees:  entryFee + exitFee,
	}, nil
}
