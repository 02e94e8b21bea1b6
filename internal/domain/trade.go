package domain

import "time"

// Trade records a single match between a buy and a sell order.
// Price is always the resting (pre-existing) order's limit price.
// Trades are immutable once created.
type Trade struct {
	TradeID     string
	Product     string
	BuyOrderID  string
	SellOrderID string
	Quantity    int64
	Price       int64 // cents per nail
	ExecutedAt  time.Time
}
