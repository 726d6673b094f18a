package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

type PositionState string

const (
	StateOpen   PositionState = "OPEN"
	StateClosed PositionState = "CLOSED"
)

// Position is the lifecycle record of one trade. It is created by the
// registry after sizing succeeds and mutated only by its monitor task:
// the exit fields are written exactly once, at close.
type Position struct {
	ID         string
	Symbol     string
	Side       Side
	MarketType MarketType
	Strategy   string

	EntryPrice float64
	Quantity   float64
	EntryFee   float64
	OpenedAt   time.Time

	State       PositionState
	ExitPrice   float64
	ExitFee     float64
	RealizedPnL float64
	PnLPercent  float64
	ExitReason  ExitReason
	ClosedAt    time.Time

	// ForcedLocal marks a position that was transitioned to CLOSED locally
	// after the exchange close order failed. Recorded state may differ from
	// the real exchange position in that case.
	ForcedLocal bool
}

func (p *Position) IsOpen() bool {
	return p.State == StateOpen
}

// TradeRecord is the closed-trade document appended to the ledger.
type TradeRecord struct {
	PositionID  string     `json:"position_id"`
	Symbol      string     `json:"symbol"`
	MarketType  MarketType `json:"market_type"`
	Side        Side       `json:"side"`
	Strategy    string     `json:"strategy,omitempty"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Quantity    float64    `json:"quantity"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    time.Time  `json:"exit_time"`
	RealizedPnL float64    `json:"realized_pnl"`
	PnLPercent  float64    `json:"pnl_percent"`
	TotalFees   float64    `json:"total_fees"`
	Reason      ExitReason `json:"reason"`
	ForcedLocal bool       `json:"forced_local"`
	LoggedAt    time.Time  `json:"logged_at"`
}
