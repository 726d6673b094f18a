package domain

// OrderSide is the exchange-facing direction of a market order.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// CloseOrderSide returns the order direction that flattens a position.
func CloseOrderSide(side Side) OrderSide {
	if side == SideLong {
		return OrderSell
	}
	return OrderBuy
}
