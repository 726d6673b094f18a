package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func sampleRecord(pnl float64, forced bool) *domain.TradeRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.TradeRecord{
		PositionID:  "pos-1",
		Symbol:      "BTCUSDT",
		MarketType:  domain.MarketSpot,
		Side:        domain.SideLong,
		Strategy:    "Breakout",
		EntryPrice:  100,
		ExitPrice:   101,
		Quantity:    1,
		EntryTime:   now.Add(-time.Minute),
		ExitTime:    now,
		RealizedPnL: pnl,
		PnLPercent:  pnl,
		TotalFees:   0.201,
		Reason:      domain.ExitTarget,
		ForcedLocal: forced,
		LoggedAt:    now,
	}
}

func TestLedgerAppendAndList(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	rec := sampleRecord(0.799, false)
	require.NoError(t, ledger.AppendTradeRecord(ctx, rec))

	trades, err := ledger.ListTradeRecords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, rec.PositionID, got.PositionID)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.Equal(t, domain.MarketSpot, got.MarketType)
	assert.Equal(t, domain.SideLong, got.Side)
	assert.Equal(t, domain.ExitTarget, got.Reason)
	assert.InDelta(t, 0.799, got.RealizedPnL, 1e-9)
	assert.False(t, got.ForcedLocal)
}

func TestLedgerListNewestFirstWithLimit(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := sampleRecord(float64(i), false)
		rec.ExitPrice = 100 + float64(i)
		require.NoError(t, ledger.AppendTradeRecord(ctx, rec))
	}

	trades, err := ledger.ListTradeRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, 104.0, trades[0].ExitPrice, "newest record first")
}

func TestLedgerPreservesForcedLocalFlag(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.AppendTradeRecord(ctx, sampleRecord(-0.5, true)))

	trades, err := ledger.ListTradeRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].ForcedLocal)
}

func TestLedgerSummarize(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	sum, err := ledger.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Trades)

	require.NoError(t, ledger.AppendTradeRecord(ctx, sampleRecord(1.5, false)))
	require.NoError(t, ledger.AppendTradeRecord(ctx, sampleRecord(-0.5, true)))
	require.NoError(t, ledger.AppendTradeRecord(ctx, sampleRecord(0.25, false)))

	sum, err = ledger.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Trades)
	assert.Equal(t, 2, sum.Wins)
	assert.Equal(t, 1, sum.Losses)
	assert.InDelta(t, 1.25, sum.TotalPnL, 1e-9)
	assert.InDelta(t, 0.603, sum.TotalFees, 1e-9)
	assert.Equal(t, 1, sum.ForcedLocal)
}
