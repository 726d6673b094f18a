package domain

// SymbolFilters are the exchange-imposed trading constraints for one symbol.
type SymbolFilters struct {
	Symbol         string
	QtyStep        float64 // lot step, order quantity must be a multiple
	MinQty         float64 // minimum tradable quantity
	MinNotional    float64 // minimum quantity*price
	PricePrecision int     // decimals for price formatting
}

// DefaultSymbolFilters is the conservative fallback for symbols without
// explicit metadata: coarse lot step and a high notional floor so an unknown
// symbol can never slip below real exchange minimums.
var DefaultSymbolFilters = SymbolFilters{
	QtyStep:        0.001,
	MinQty:         0.001,
	MinNotional:    10.0,
	PricePrecision: 2,
}
