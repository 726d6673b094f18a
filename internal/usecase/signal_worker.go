package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"go.uber.org/zap"
)

// SignalWorker polls the signal source for every watched symbol and turns
// signal transitions into engine submissions. A signal must change before it
// is acted on again, so a strategy holding its BUY does not stack entries.
// Each poll also sweeps the symbol for stale duplicate longs and asks the
// engine to reconcile them.
type SignalWorker struct {
	engine  *Engine
	signals domain.SignalSource
	prices  domain.PriceSource
	trading config.TradingConfig
	logger  *zap.Logger

	lastSeen map[string]domain.Signal
}

func NewSignalWorker(engine *Engine, signals domain.SignalSource, prices domain.PriceSource, trading config.TradingConfig, logger *zap.Logger) *SignalWorker {
	return &SignalWorker{
		engine:   engine,
		signals:  signals,
		prices:   prices,
		trading:  trading,
		logger:   logger,
		lastSeen: make(map[string]domain.Signal),
	}
}

// Run polls until ctx is cancelled. Only the worker goroutine touches
// lastSeen.
func (w *SignalWorker) Run(ctx context.Context) error {
	w.logger.Info("Starting signal worker",
		zap.Strings("symbols", w.trading.WatchSymbols),
		zap.String("strategy", w.trading.Strategy))

	ticker := time.NewTicker(w.trading.SignalPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, symbol := range w.trading.WatchSymbols {
				w.engine.Reconcile(symbol)
				w.poll(ctx, symbol)
			}
		}
	}
}

func (w *SignalWorker) poll(ctx context.Context, symbol string) {
	sig, err := w.signals.LatestSignal(ctx, symbol, w.trading.Strategy)
	if err != nil {
		// No signal published yet, or the source is down. Try next tick.
		return
	}
	if sig == domain.SignalNone || sig == w.lastSeen[symbol] {
		return
	}

	price, err := w.prices.LastPrice(ctx, symbol)
	if err != nil {
		// Not marked seen: the signal is retried once a price arrives.
		w.logger.Warn("Signal received but no price yet",
			zap.String("symbol", symbol), zap.String("signal", string(sig)))
		return
	}
	w.lastSeen[symbol] = sig

	var side domain.OrderSide
	switch sig {
	case domain.SignalBuy:
		side = domain.OrderBuy
	case domain.SignalSell:
		side = domain.OrderSell
	default:
		return
	}

	_, err = w.engine.Submit(ctx, OpenRequest{
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		MarketType: domain.MarketType(w.trading.MarketType),
		Strategy:   w.trading.Strategy,
	})
	switch {
	case err == nil:
		w.logger.Info("Signal acted on",
			zap.String("symbol", symbol),
			zap.String("signal", string(sig)),
			zap.Float64("price", price))
	case errors.Is(err, domain.ErrDuplicatePosition), errors.Is(err, domain.ErrNoOpenPosition):
		w.logger.Debug("Signal skipped",
			zap.String("symbol", symbol),
			zap.String("signal", string(sig)),
			zap.Error(err))
	default:
		w.logger.Error("Signal submission failed",
			zap.String("symbol", symbol),
			zap.String("signal", string(sig)),
			zap.Error(err))
	}
}
