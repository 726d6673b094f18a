package domain

// ExitReason identifies the exit family that closed a position.
type ExitReason string

const (
	ExitStrategySignal      ExitReason = "STRATEGY_SIGNAL"
	ExitTarget              ExitReason = "TARGET"
	ExitStopLoss            ExitReason = "STOPLOSS"
	ExitTimeLimit           ExitReason = "TIME_EXIT"
	ExitTrailingStop        ExitReason = "TRAILING_STOP"
	ExitTakeProfit          ExitReason = "TAKE_PROFIT"
	ExitVolatilityBreakout  ExitReason = "VOLATILITY_BREAKOUT"
	ExitVolatilityBreakdown ExitReason = "VOLATILITY_BREAKDOWN"
	ExitMaxDrawdown         ExitReason = "MAX_DRAWDOWN"
	ExitVolatilityExpansion ExitReason = "VOLATILITY_EXPANSION"
)

// ExitTrigger is produced during one evaluation tick. When several families
// fire in the same tick, the lowest priority value wins.
type ExitTrigger struct {
	Reason   ExitReason
	Priority int
}
