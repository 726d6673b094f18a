package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

type mockPrices struct {
	mu     sync.Mutex
	prices map[string]float64
	ranges map[string]domain.PriceRange
}

func newMockPrices() *mockPrices {
	return &mockPrices{
		prices: make(map[string]float64),
		ranges: make(map[string]domain.PriceRange),
	}
}

func (m *mockPrices) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *mockPrices) LastPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[symbol]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return price, nil
}

func (m *mockPrices) RecentRange(ctx context.Context, symbol string) (domain.PriceRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rng, ok := m.ranges[symbol]
	if !ok {
		return domain.PriceRange{}, domain.ErrPriceUnavailable
	}
	return rng, nil
}

type mockSignals struct {
	mu      sync.Mutex
	signals map[string]domain.Signal
}

func newMockSignals() *mockSignals {
	return &mockSignals{signals: make(map[string]domain.Signal)}
}

func (m *mockSignals) Publish(symbol string, sig domain.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[symbol] = sig
}

func (m *mockSignals) LatestSignal(ctx context.Context, symbol, strategy string) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[symbol]
	if !ok {
		return domain.SignalNone, nil
	}
	return sig, nil
}

type submittedOrder struct {
	Symbol     string
	Side       domain.OrderSide
	Quantity   float64
	MarketType domain.MarketType
}

type mockGateway struct {
	mu        sync.Mutex
	orders    []submittedOrder
	fillPrice float64
	err       error

	// Optional hooks for interleaving tests. Set before any call is made:
	// every SubmitMarketOrder sends on entered, then blocks until proceed
	// is closed.
	entered chan struct{}
	proceed chan struct{}
}

func (m *mockGateway) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockGateway) SubmitMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, marketType domain.MarketType) (*domain.OrderResult, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.proceed != nil {
		<-m.proceed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.orders = append(m.orders, submittedOrder{Symbol: symbol, Side: side, Quantity: quantity, MarketType: marketType})
	result := &domain.OrderResult{OrderID: "1", Status: "FILLED"}
	if m.fillPrice > 0 {
		result.Fills = []domain.OrderFill{{Price: m.fillPrice, Quantity: quantity}}
	}
	return result, nil
}

func (m *mockGateway) Orders() []submittedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]submittedOrder, len(m.orders))
	copy(out, m.orders)
	return out
}

type mockLedger struct {
	mu      sync.Mutex
	records []*domain.TradeRecord
	err     error
}

func (m *mockLedger) AppendTradeRecord(ctx context.Context, rec *domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockLedger) ListTradeRecords(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.TradeRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *mockLedger) Records() []*domain.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.TradeRecord, len(m.records))
	copy(out, m.records)
	return out
}

type mockMeta struct {
	filters domain.SymbolFilters
}

func (m *mockMeta) Filters(symbol string) domain.SymbolFilters {
	f := m.filters
	f.Symbol = symbol
	return f
}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		TradeAmountUSDT:       100,
		MarketType:            string(domain.MarketSpot),
		SpotCommissionRate:    0.001,
		FuturesCommissionRate: 0.0004,
		RefreshIntervalMs:     5,
		MaxHoldTimeSec:        60,
		TargetPercent:         0.4,
		StopLossPercent:       0.2,
		Strategy:              "Breakout",
		SignalPollMs:          5,
		WatchSymbols:          []string{"BTCUSDT"},
	}
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		ATRPeriod:            14,
		BandPeriod:           20,
		BandStd:              2.0,
		VolatilityWindow:     30,
		TrailingActivation:   0.005,
		StopMode:             "volatility",
		ProfitTaking:         "dynamic",
		ProfitMultiplier:     2.0,
		MaxDrawdownPct:       0.05,
		VolExpansionMultiple: 2.0,
	}
}

func testExitsConfig(enabled ...domain.ExitReason) config.ExitsConfig {
	names := make([]string, 0, len(enabled))
	for _, r := range enabled {
		names = append(names, string(r))
	}
	return config.ExitsConfig{
		Enabled:    names,
		Priorities: config.DefaultExitPriorities(),
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
