package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"go.uber.org/zap"
)

func TestRegistryRefusesDuplicateSpotLong(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketSpot, "Breakout", 50000, 0.002, 0.1)
	require.NoError(t, err)

	_, err = r.Open("BTCUSDT", domain.SideLong, domain.MarketSpot, "Breakout", 50100, 0.002, 0.1)
	assert.ErrorIs(t, err, domain.ErrDuplicatePosition)

	// A different symbol is fine.
	_, err = r.Open("ETHUSDT", domain.SideLong, domain.MarketSpot, "Breakout", 3000, 0.03, 0.09)
	assert.NoError(t, err)
}

func TestRegistryReserveLongClaimsTheSlot(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.ReserveLong("BTCUSDT"))

	// A second claim, and a claim against an open long, are both refused.
	assert.ErrorIs(t, r.ReserveLong("BTCUSDT"), domain.ErrDuplicatePosition)

	_, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketSpot, "Breakout", 50000, 0.002, 0.1)
	require.NoError(t, err)
	r.ReleaseLong("BTCUSDT")
	assert.ErrorIs(t, r.ReserveLong("BTCUSDT"), domain.ErrDuplicatePosition)

	// Other symbols are unaffected.
	assert.NoError(t, r.ReserveLong("ETHUSDT"))
}

func TestRegistryReleaseLongFreesTheSlot(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	require.NoError(t, r.ReserveLong("BTCUSDT"))
	r.ReleaseLong("BTCUSDT")
	assert.NoError(t, r.ReserveLong("BTCUSDT"))
}

func TestRegistryAllowsConcurrentFuturesPositions(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketFutures, "", 50000, 0.002, 0.04)
	require.NoError(t, err)
	_, err = r.Open("BTCUSDT", domain.SideShort, domain.MarketFutures, "", 50000, 0.002, 0.04)
	assert.NoError(t, err)
}

func TestRegistryMarkClosedExactlyOnce(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	pos, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketSpot, "", 50000, 0.002, 0.1)
	require.NoError(t, err)

	details := CloseDetails{ExitPrice: 50500, RealizedPnL: 0.8, Reason: domain.ExitTarget}
	assert.True(t, r.MarkClosed(pos.ID, details))
	assert.False(t, r.MarkClosed(pos.ID, details), "second close must be a no-op")
	assert.False(t, r.MarkClosed("missing", details))

	got, ok := r.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StateClosed, got.State)
	assert.Equal(t, domain.ExitTarget, got.ExitReason)
	assert.Equal(t, 50500.0, got.ExitPrice)
	assert.False(t, got.ClosedAt.IsZero())
}

func TestRegistryOpenLongFindsNewest(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	assert.Nil(t, r.OpenLong("BTCUSDT"))

	pos, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketSpot, "", 50000, 0.002, 0.1)
	require.NoError(t, err)

	found := r.OpenLong("BTCUSDT")
	require.NotNil(t, found)
	assert.Equal(t, pos.ID, found.ID)

	r.MarkClosed(pos.ID, CloseDetails{Reason: domain.ExitTimeLimit})
	assert.Nil(t, r.OpenLong("BTCUSDT"))
}

func TestRegistryOpenPositionsFilters(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, err := r.Open("BTCUSDT", domain.SideLong, domain.MarketFutures, "", 50000, 0.002, 0.04)
	require.NoError(t, err)
	_, err = r.Open("ETHUSDT", domain.SideShort, domain.MarketFutures, "", 3000, 0.03, 0.04)
	require.NoError(t, err)

	assert.Len(t, r.OpenPositions("", ""), 2)
	assert.Len(t, r.OpenPositions("BTCUSDT", ""), 1)
	assert.Len(t, r.OpenPositions("", domain.SideShort), 1)
	assert.Empty(t, r.OpenPositions("BTCUSDT", domain.SideShort))
}

func TestRegistrySummary(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	p1, _ := r.Open("BTCUSDT", domain.SideLong, domain.MarketFutures, "", 50000, 0.002, 0.04)
	p2, _ := r.Open("ETHUSDT", domain.SideLong, domain.MarketFutures, "", 3000, 0.03, 0.04)
	_, _ = r.Open("SOLUSDT", domain.SideLong, domain.MarketFutures, "", 150, 0.5, 0.03)

	r.MarkClosed(p1.ID, CloseDetails{RealizedPnL: 1.5, Reason: domain.ExitTarget})
	r.MarkClosed(p2.ID, CloseDetails{RealizedPnL: -0.5, Reason: domain.ExitStopLoss})

	s := r.Summary()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 2, s.Closed)
	assert.InDelta(t, 1.0, s.TotalPnL, 1e-9)
}

func TestRegistryDuplicateOpenLongs(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	// Futures side has no duplicate guard, so duplicates can exist.
	p1, _ := r.Open("BTCUSDT", domain.SideLong, domain.MarketFutures, "", 50000, 0.002, 0.04)
	p2, _ := r.Open("BTCUSDT", domain.SideLong, domain.MarketFutures, "", 50100, 0.002, 0.04)

	stale := r.DuplicateOpenLongs("BTCUSDT")
	require.Len(t, stale, 1)
	assert.Equal(t, p1.ID, stale[0].ID, "the newest position is kept")

	r.MarkClosed(p2.ID, CloseDetails{Reason: domain.ExitTimeLimit})
	assert.Nil(t, r.DuplicateOpenLongs("BTCUSDT"))
}
