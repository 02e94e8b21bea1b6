package domain

import "time"

// OrderSide indicates whether an order buys or sells nails.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
// Orders start active and end in exactly one of the terminal states:
// filled (via matching) or cancelled (via an explicit cancel).
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a buy or sell instruction for a single nail product.
// Price is the limit price per nail in cents. FilledQuantity never exceeds
// Quantity, and Status is filled iff FilledQuantity equals Quantity.
type Order struct {
	OrderID        string
	OwnerID        string
	Side           OrderSide
	Product        string
	Quantity       int64
	Price          int64 // cents per nail
	FilledQuantity int64
	Status         OrderStatus
	CreatedAt      time.Time
	CancelledAt    *time.Time
	Trades         []*Trade
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Terminal reports whether the order is in a terminal state.
// Terminal orders never change status or filled quantity again.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// AveragePrice computes the volume-weighted average execution price
// as sum(trade.price × trade.quantity) / filled_quantity using integer
// arithmetic. Returns (0, false) when no trades have been executed.
func (o *Order) AveragePrice() (int64, bool) {
	if len(o.Trades) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, t := range o.Trades {
		total += t.Price * t.Quantity
	}
	return total / o.FilledQuantity, true
}
