package domain

// BookLevel is one aggregated price level of the order book: the summed
// remaining quantity and order count across active orders at that price.
type BookLevel struct {
	Price      int64
	Quantity   int64
	OrderCount int
}

// BookView is the aggregated order book for one product.
// Bids are sorted by price descending, asks ascending. Levels with zero
// remaining quantity never appear.
type BookView struct {
	Product string
	Bids    []BookLevel
	Asks    []BookLevel
}

// DepthLevel is one point of the market depth curve: a price level with
// the cumulative volume from the best price out to that level.
type DepthLevel struct {
	Price            int64
	Quantity         int64
	CumulativeVolume int64
}
