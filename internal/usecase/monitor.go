package usecase

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"github.com/vitos/crypto_trade_engine/internal/metrics"
	"go.uber.org/zap"
)

type monitorPhase int32

const (
	phaseActive monitorPhase = iota
	phaseExiting
	phaseTerminated
)

// Monitor is the per-position polling task. Exactly one monitor runs per open
// position; it reads the shared price cache, updates the position's risk
// model, arbitrates exit triggers and performs the close-out. The state
// machine is one-way: ACTIVE -> EXITING -> TERMINATED.
//
// A price-cache miss is expected while the feed warms up; the monitor sleeps
// one refresh interval and retries. Once a trigger is selected the close-out
// runs to completion even if shutdown is requested mid-flight.
type Monitor struct {
	pos        domain.Position // immutable snapshot of the entry fields
	registry   *Registry
	prices     domain.PriceSource
	signals    domain.SignalSource
	executor   *TradeExecutor
	sizer      *OrderSizer
	accountant *PnLAccountant
	ledger     domain.TradeLedger
	risk       *RiskModel
	trading    config.TradingConfig
	enabled    map[domain.ExitReason]bool
	exits      config.ExitsConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger

	phase          atomic.Int32
	closeRequested atomic.Bool
	done           chan struct{}
}

// MonitorDeps bundles the shared collaborators a monitor needs.
type MonitorDeps struct {
	Registry   *Registry
	Prices     domain.PriceSource
	Signals    domain.SignalSource
	Executor   *TradeExecutor
	Sizer      *OrderSizer
	Accountant *PnLAccountant
	Ledger     domain.TradeLedger
	Trading    config.TradingConfig
	Risk       config.RiskConfig
	Exits      config.ExitsConfig
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

func NewMonitor(pos *domain.Position, deps MonitorDeps) *Monitor {
	return &Monitor{
		pos:        *pos,
		registry:   deps.Registry,
		prices:     deps.Prices,
		signals:    deps.Signals,
		executor:   deps.Executor,
		sizer:      deps.Sizer,
		accountant: deps.Accountant,
		ledger:     deps.Ledger,
		risk:       NewRiskModel(deps.Risk, pos.Side, pos.EntryPrice),
		trading:    deps.Trading,
		enabled:    deps.Exits.EnabledReasons(),
		exits:      deps.Exits,
		metrics:    deps.Metrics,
		logger: deps.Logger.With(
			zap.String("position_id", pos.ID),
			zap.String("symbol", pos.Symbol),
			zap.String("side", string(pos.Side))),
		done: make(chan struct{}),
	}
}

// RequestClose asks the monitor to close out on its next tick with reason
// STRATEGY_SIGNAL. It is honored regardless of which exit families are
// enabled. Safe to call from any goroutine, any number of times.
func (m *Monitor) RequestClose() {
	m.closeRequested.Store(true)
}

// Done is closed when the monitor has terminated.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Run polls until an exit trigger fires or ctx is cancelled. Close-out is not
// interruptible: once a trigger is selected, cancellation is honored only
// after the ledger write and state transition finish.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)
	defer m.phase.Store(int32(phaseTerminated))

	interval := m.trading.RefreshInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		price, err := m.prices.LastPrice(ctx, m.pos.Symbol)
		if err != nil {
			// Normal while the feed has no data yet. Wait and retry.
			m.metrics.PriceMiss()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		trigger := m.evaluate(ctx, price)
		if trigger != nil {
			m.phase.Store(int32(phaseExiting))
			m.closeOut(ctx, price, *trigger)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// evaluate runs one tick: risk-model update, then every enabled exit family
// independently. When several families fire simultaneously the lowest
// configured priority value wins.
func (m *Monitor) evaluate(ctx context.Context, price float64) *domain.ExitTrigger {
	m.metrics.MonitorTick()

	rng, err := m.prices.RecentRange(ctx, m.pos.Symbol)
	if err != nil {
		// No candle yet; the latest trade is the whole bar.
		rng = domain.PriceRange{High: price, Low: price}
	}
	stop, target := m.risk.Update(price, rng.High, rng.Low)

	pnlPct := (price - m.pos.EntryPrice) / m.pos.EntryPrice * 100
	if m.pos.Side == domain.SideShort {
		pnlPct = -pnlPct
	}
	elapsed := time.Since(m.pos.OpenedAt)

	var triggers []domain.ExitTrigger
	add := func(reason domain.ExitReason) {
		triggers = append(triggers, domain.ExitTrigger{
			Reason:   reason,
			Priority: m.exits.PriorityFor(reason),
		})
	}

	// An explicit close request (API or spot sell) bypasses the family gate:
	// it must work even when STRATEGY_SIGNAL exits are disabled.
	if m.closeRequested.Load() {
		add(domain.ExitStrategySignal)
	} else if m.enabled[domain.ExitStrategySignal] && m.strategySaysExit(ctx) {
		add(domain.ExitStrategySignal)
	}
	if m.enabled[domain.ExitTarget] && pnlPct >= m.trading.TargetPercent {
		add(domain.ExitTarget)
	}
	if m.enabled[domain.ExitStopLoss] && pnlPct <= -m.trading.StopLossPercent {
		add(domain.ExitStopLoss)
	}
	if m.enabled[domain.ExitTimeLimit] && elapsed >= m.trading.MaxHoldTime() {
		add(domain.ExitTimeLimit)
	}
	if m.enabled[domain.ExitTrailingStop] && crossedStop(m.pos.Side, price, stop) {
		add(domain.ExitTrailingStop)
	}
	if m.enabled[domain.ExitTakeProfit] && crossedTarget(m.pos.Side, price, target) {
		add(domain.ExitTakeProfit)
	}
	if upper, lower := m.risk.Band(); upper > lower {
		if m.pos.Side == domain.SideLong && m.enabled[domain.ExitVolatilityBreakdown] && price < lower {
			add(domain.ExitVolatilityBreakdown)
		}
		if m.pos.Side == domain.SideShort && m.enabled[domain.ExitVolatilityBreakout] && price > upper {
			add(domain.ExitVolatilityBreakout)
		}
	}
	if m.enabled[domain.ExitMaxDrawdown] && m.risk.Drawdown(price) >= m.risk.MaxDrawdownLimit() {
		add(domain.ExitMaxDrawdown)
	}
	if m.enabled[domain.ExitVolatilityExpansion] && m.risk.VolatilityExpanded() {
		add(domain.ExitVolatilityExpansion)
	}

	if len(triggers) == 0 {
		return nil
	}

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].Priority < triggers[j].Priority
	})
	winner := triggers[0]

	m.logger.Info("Exit trigger selected",
		zap.String("reason", string(winner.Reason)),
		zap.Int("priority", winner.Priority),
		zap.Int("candidates", len(triggers)),
		zap.Float64("price", price),
		zap.Float64("pnl_pct", pnlPct))

	return &winner
}

func (m *Monitor) strategySaysExit(ctx context.Context) bool {
	sig, err := m.signals.LatestSignal(ctx, m.pos.Symbol, m.pos.Strategy)
	if err != nil {
		// Transient source failure; skip the family this tick.
		return false
	}
	if m.pos.Side == domain.SideLong {
		return sig == domain.SignalSell
	}
	return sig == domain.SignalBuy
}

func crossedStop(side domain.Side, price, stop float64) bool {
	if stop == 0 {
		return false
	}
	if side == domain.SideLong {
		return price <= stop
	}
	return price >= stop
}

func crossedTarget(side domain.Side, price, target float64) bool {
	if target == 0 {
		return false
	}
	if side == domain.SideLong {
		return price >= target
	}
	return price <= target
}

// closeOut flattens the position on the exchange, computes fee-aware realized
// PnL, transitions the position to CLOSED exactly once and appends the trade
// record. Uses a non-cancellable context: a selected exit must always finish.
func (m *Monitor) closeOut(ctx context.Context, lastPrice float64, trigger domain.ExitTrigger) {
	ctx = context.WithoutCancel(ctx)

	exitPrice := lastPrice
	forcedLocal := false

	closeQty := m.sizer.CloseQuantity(m.pos.Symbol, m.pos.Quantity, m.pos.MarketType, m.pos.Side)
	result, err := m.executor.Execute(ctx, m.pos.Symbol, domain.CloseOrderSide(m.pos.Side), closeQty, m.pos.MarketType)
	if err != nil {
		// The exchange refused the close. Transition locally at the last
		// observed price anyway so the position cannot stay open forever,
		// and flag the record: book state may now differ from the venue.
		forcedLocal = true
		m.logger.Error("Close order failed, forcing local close",
			zap.String("reason", string(trigger.Reason)),
			zap.Float64("last_price", lastPrice),
			zap.Error(err))
	} else {
		exitPrice = FillPrice(result, lastPrice)
	}

	breakdown, err := m.accountant.Realized(m.pos.EntryPrice, exitPrice, m.pos.Quantity, m.pos.Side, m.pos.MarketType)
	if err != nil {
		m.logger.Error("PnL computation failed", zap.Error(err))
		breakdown = &PnLBreakdown{}
	}

	if !m.registry.MarkClosed(m.pos.ID, CloseDetails{
		ExitPrice:   exitPrice,
		ExitFee:     breakdown.ExitFee,
		RealizedPnL: breakdown.PnL,
		PnLPercent:  breakdown.PnLPercent,
		Reason:      trigger.Reason,
		ForcedLocal: forcedLocal,
	}) {
		m.logger.Warn("Position already closed, skipping duplicate close-out")
		return
	}

	m.metrics.PositionClosed(string(trigger.Reason))
	m.logger.Info("Position closed",
		zap.String("reason", string(trigger.Reason)),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", breakdown.PnL),
		zap.Float64("pnl_pct", breakdown.PnLPercent),
		zap.Float64("fees", breakdown.TotalFees),
		zap.Bool("forced_local", forcedLocal))

	record := &domain.TradeRecord{
		PositionID:  m.pos.ID,
		Symbol:      m.pos.Symbol,
		MarketType:  m.pos.MarketType,
		Side:        m.pos.Side,
		Strategy:    m.pos.Strategy,
		EntryPrice:  m.pos.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    m.pos.Quantity,
		EntryTime:   m.pos.OpenedAt,
		ExitTime:    time.Now(),
		RealizedPnL: breakdown.PnL,
		PnLPercent:  breakdown.PnLPercent,
		TotalFees:   breakdown.TotalFees,
		Reason:      trigger.Reason,
		ForcedLocal: forcedLocal,
		LoggedAt:    time.Now(),
	}
	if err := m.ledger.AppendTradeRecord(ctx, record); err != nil {
		// Never blocks the transition; the close already happened.
		m.metrics.LedgerFailure()
		m.logger.Error("Ledger write failed", zap.Error(err))
	}
}
