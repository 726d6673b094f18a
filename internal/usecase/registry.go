package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"go.uber.org/zap"
)

// Registry owns every position for its lifetime. All access goes through its
// mutex: monitors close positions via MarkClosed, readers get copies. The
// registry is an explicitly constructed, injectable instance, not a global.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	positions []*domain.Position // newest appended last
	byID      map[string]*domain.Position
	reserved  map[string]struct{} // spot-long slots with an open in flight
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		byID:     make(map[string]*domain.Position),
		reserved: make(map[string]struct{}),
	}
}

// ReserveLong claims the spot-long slot for a symbol ahead of the exchange
// order, so a concurrent buy is refused before any external mutation. The
// caller releases the claim with ReleaseLong once the open attempt resolves,
// whether or not a position was appended.
func (r *Registry) ReserveLong(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.reserved[symbol]; held {
		return fmt.Errorf("%w: %s open in flight", domain.ErrDuplicatePosition, symbol)
	}
	if existing := r.openLongLocked(symbol); existing != nil {
		return fmt.Errorf("%w: %s held since %s", domain.ErrDuplicatePosition,
			symbol, existing.OpenedAt.Format(time.RFC3339))
	}
	r.reserved[symbol] = struct{}{}
	return nil
}

// ReleaseLong gives up a claim taken by ReserveLong.
func (r *Registry) ReleaseLong(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, symbol)
}

// Open appends a new OPEN position. For spot longs it refuses a duplicate:
// at most one OPEN LONG per symbol.
func (r *Registry) Open(symbol string, side domain.Side, marketType domain.MarketType, strategy string, entryPrice, quantity, entryFee float64) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if marketType == domain.MarketSpot && side == domain.SideLong {
		if existing := r.openLongLocked(symbol); existing != nil {
			return nil, fmt.Errorf("%w: %s held since %s", domain.ErrDuplicatePosition,
				symbol, existing.OpenedAt.Format(time.RFC3339))
		}
	}

	pos := &domain.Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		MarketType: marketType,
		Strategy:   strategy,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		EntryFee:   entryFee,
		OpenedAt:   time.Now(),
		State:      domain.StateOpen,
	}
	r.positions = append(r.positions, pos)
	r.byID[pos.ID] = pos

	r.logger.Info("Position opened",
		zap.String("position_id", pos.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("quantity", quantity))

	return pos, nil
}

// OpenLong returns the newest OPEN LONG for a symbol, or nil. A closing SELL
// is only valid against this position.
func (r *Registry) OpenLong(symbol string) *domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openLongLocked(symbol)
}

func (r *Registry) openLongLocked(symbol string) *domain.Position {
	for i := len(r.positions) - 1; i >= 0; i-- {
		p := r.positions[i]
		if p.Symbol == symbol && p.Side == domain.SideLong && p.State == domain.StateOpen {
			return p
		}
	}
	return nil
}

// CloseDetails carries the one-shot exit fields set by MarkClosed.
type CloseDetails struct {
	ExitPrice   float64
	ExitFee     float64
	RealizedPnL float64
	PnLPercent  float64
	Reason      domain.ExitReason
	ForcedLocal bool
}

// MarkClosed transitions a position OPEN -> CLOSED exactly once. It returns
// false when the position is unknown or already closed, which makes a racing
// double-close harmless.
func (r *Registry) MarkClosed(id string, details CloseDetails) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.byID[id]
	if !ok || pos.State != domain.StateOpen {
		return false
	}

	pos.State = domain.StateClosed
	pos.ExitPrice = details.ExitPrice
	pos.ExitFee = details.ExitFee
	pos.RealizedPnL = details.RealizedPnL
	pos.PnLPercent = details.PnLPercent
	pos.ExitReason = details.Reason
	pos.ForcedLocal = details.ForcedLocal
	pos.ClosedAt = time.Now()
	return true
}

// Get returns a copy of a position by id.
func (r *Registry) Get(id string) (domain.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.byID[id]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns copies of the OPEN positions, optionally filtered by
// symbol and/or side (empty values match everything).
func (r *Registry) OpenPositions(symbol string, side domain.Side) []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Position
	for _, p := range r.positions {
		if p.State != domain.StateOpen {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		if side != "" && p.Side != side {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// DuplicateOpenLongs returns copies of every OPEN LONG for the symbol except
// the newest. A non-empty result is a defect state; the engine reconciles it
// by closing the stale entries.
func (r *Registry) DuplicateOpenLongs(symbol string) []domain.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*domain.Position
	for _, p := range r.positions {
		if p.Symbol == symbol && p.Side == domain.SideLong && p.State == domain.StateOpen {
			open = append(open, p)
		}
	}
	if len(open) <= 1 {
		return nil
	}

	stale := make([]domain.Position, 0, len(open)-1)
	for _, p := range open[:len(open)-1] {
		stale = append(stale, *p)
	}
	return stale
}

// Summary aggregates lifetime totals. TotalPnL only counts closed positions.
func (r *Registry) Summary() domain.Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s domain.Summary
	s.Total = len(r.positions)
	for _, p := range r.positions {
		if p.State == domain.StateOpen {
			s.Open++
		} else {
			s.Closed++
			s.TotalPnL += p.RealizedPnL
		}
	}
	return s
}
