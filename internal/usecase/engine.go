package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"github.com/vitos/crypto_trade_engine/internal/metrics"
	"go.uber.org/zap"
)

// Engine is the trade execution front door. It maps incoming order intents to
// position lifecycle actions, owns the monitor goroutines and exposes the
// registry views used by the API layer.
//
// Side mapping: a BUY opens a LONG. On spot a SELL is a close request against
// the existing open LONG for the symbol; on futures a SELL opens a SHORT.
type Engine struct {
	registry   *Registry
	sizer      *OrderSizer
	executor   *TradeExecutor
	accountant *PnLAccountant
	ledger     domain.TradeLedger
	prices     domain.PriceSource
	signals    domain.SignalSource
	trading    config.TradingConfig
	risk       config.RiskConfig
	exits      config.ExitsConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	monitors map[string]*Monitor
}

// EngineDeps bundles everything the engine wires together.
type EngineDeps struct {
	Registry   *Registry
	Sizer      *OrderSizer
	Executor   *TradeExecutor
	Accountant *PnLAccountant
	Ledger     domain.TradeLedger
	Prices     domain.PriceSource
	Signals    domain.SignalSource
	Trading    config.TradingConfig
	Risk       config.RiskConfig
	Exits      config.ExitsConfig
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

func NewEngine(deps EngineDeps) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		registry:   deps.Registry,
		sizer:      deps.Sizer,
		executor:   deps.Executor,
		accountant: deps.Accountant,
		ledger:     deps.Ledger,
		prices:     deps.Prices,
		signals:    deps.Signals,
		trading:    deps.Trading,
		risk:       deps.Risk,
		exits:      deps.Exits,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		ctx:        ctx,
		cancel:     cancel,
		monitors:   make(map[string]*Monitor),
	}
}

// OpenRequest is one order intent from a strategy signal or the API.
type OpenRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Price      float64
	MarketType domain.MarketType
	Strategy   string
}

// Submit handles one order intent. For opening intents it sizes the order,
// submits it to the exchange, registers the position and starts its monitor.
// For a spot SELL it requests a close on the symbol's open long instead.
func (e *Engine) Submit(ctx context.Context, req OpenRequest) (*domain.Position, error) {
	switch req.Side {
	case domain.OrderBuy:
		return e.open(ctx, req, domain.SideLong)
	case domain.OrderSell:
		if req.MarketType == domain.MarketFutures {
			return e.open(ctx, req, domain.SideShort)
		}
		if err := e.RequestClose(req.Symbol); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: order side %q", domain.ErrInvalidParameters, req.Side)
	}
}

func (e *Engine) open(ctx context.Context, req OpenRequest, side domain.Side) (*domain.Position, error) {
	// Claim the symbol's spot-long slot before touching the exchange. A
	// concurrent buy for the same symbol is refused here, so at most one
	// order reaches the venue per open slot.
	if req.MarketType == domain.MarketSpot && side == domain.SideLong {
		if err := e.registry.ReserveLong(req.Symbol); err != nil {
			return nil, err
		}
		defer e.registry.ReleaseLong(req.Symbol)
	}

	quote, err := e.sizer.Size(req.Symbol, req.Price, req.MarketType, req.Side, e.trading.TradeAmountUSDT)
	if err != nil {
		return nil, err
	}

	entryPrice := req.Price
	result, err := e.executor.Execute(ctx, req.Symbol, req.Side, quote.Quantity, req.MarketType)
	if err != nil {
		// Keep the book consistent with the intent: register at the
		// requested price and let the monitor manage the exposure.
		e.logger.Error("Entry order failed, registering at requested price",
			zap.String("symbol", req.Symbol),
			zap.Float64("price", req.Price),
			zap.Error(err))
	} else {
		entryPrice = FillPrice(result, req.Price)
	}

	pos, err := e.registry.Open(req.Symbol, side, req.MarketType, req.Strategy, entryPrice, quote.Quantity, quote.EstimatedFee)
	if err != nil {
		return nil, err
	}

	e.metrics.PositionOpened()
	e.startMonitor(pos)

	out := *pos
	return &out, nil
}

// startMonitor spawns the position's monitor goroutine. Called only after the
// position is in the registry so the monitor can always resolve its ID.
func (e *Engine) startMonitor(pos *domain.Position) {
	m := NewMonitor(pos, MonitorDeps{
		Registry:   e.registry,
		Prices:     e.prices,
		Signals:    e.signals,
		Executor:   e.executor,
		Sizer:      e.sizer,
		Accountant: e.accountant,
		Ledger:     e.ledger,
		Trading:    e.trading,
		Risk:       e.risk,
		Exits:      e.exits,
		Metrics:    e.metrics,
		Logger:     e.logger,
	})

	e.mu.Lock()
	e.monitors[pos.ID] = m
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		m.Run(e.ctx)
		e.mu.Lock()
		delete(e.monitors, pos.ID)
		e.mu.Unlock()
	}()
}

// RequestClose asks the monitor of the symbol's open long to close out on its
// next tick. Returns ErrNoOpenPosition when nothing is open.
func (e *Engine) RequestClose(symbol string) error {
	pos := e.registry.OpenLong(symbol)
	if pos == nil {
		return fmt.Errorf("%w: %s", domain.ErrNoOpenPosition, symbol)
	}

	e.mu.Lock()
	m := e.monitors[pos.ID]
	e.mu.Unlock()
	if m == nil {
		return fmt.Errorf("%w: %s has no active monitor", domain.ErrNoOpenPosition, symbol)
	}

	m.RequestClose()
	e.logger.Info("Close requested", zap.String("symbol", symbol), zap.String("position_id", pos.ID))
	return nil
}

// Reconcile requests closes on stale duplicate open longs for a symbol,
// keeping only the newest. Duplicates can appear after a restart replays
// unclosed positions from the ledger.
func (e *Engine) Reconcile(symbol string) int {
	stale := e.registry.DuplicateOpenLongs(symbol)
	for _, pos := range stale {
		e.mu.Lock()
		m := e.monitors[pos.ID]
		e.mu.Unlock()
		if m != nil {
			m.RequestClose()
		}
	}
	if len(stale) > 0 {
		e.logger.Warn("Reconcile: closing stale duplicate longs",
			zap.String("symbol", symbol), zap.Int("count", len(stale)))
	}
	return len(stale)
}

// OpenPositions lists open positions, optionally filtered by symbol and side.
func (e *Engine) OpenPositions(symbol string, side domain.Side) []domain.Position {
	return e.registry.OpenPositions(symbol, side)
}

// Summary returns the aggregate position statistics.
func (e *Engine) Summary() domain.Summary {
	return e.registry.Summary()
}

// Shutdown cancels all monitors and waits for them to finish, bounded by ctx.
// Monitors mid close-out always complete their transition before returning.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
