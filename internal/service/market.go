package service

import (
	"fmt"
	"time"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/engine"
	"github.com/nailmarket/nailmarket/internal/store"
)

// PriceResponse represents the reference price for a product.
type PriceResponse struct {
	Product        string
	CurrentPrice   *int64 // nil when no trades ever
	Window         string // e.g. "5m"
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// BookResponse represents the aggregated book for a product.
type BookResponse struct {
	Product    string
	Bids       []domain.BookLevel
	Asks       []domain.BookLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// DepthResponse represents the cumulative depth curve for a product.
type DepthResponse struct {
	Product    string
	Bids       []domain.DepthLevel
	Asks       []domain.DepthLevel
	SnapshotAt time.Time
}

// MarketService handles product catalog, book, depth, trade history, and
// price queries. All of its operations are read-only.
type MarketService struct {
	tradeStore *store.TradeStore
	matcher    *engine.Matcher
	catalog    *domain.ProductCatalog
	vwapWindow time.Duration
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	tradeStore *store.TradeStore,
	matcher *engine.Matcher,
	catalog *domain.ProductCatalog,
	vwapWindow time.Duration,
) *MarketService {
	return &MarketService{
		tradeStore: tradeStore,
		matcher:    matcher,
		catalog:    catalog,
		vwapWindow: vwapWindow,
	}
}

// Products returns the tradable products in catalog order.
func (s *MarketService) Products() []string {
	return s.catalog.List()
}

// GetBook returns the aggregated order book for a product. depth limits
// the number of levels per side; 0 means all levels.
func (s *MarketService) GetBook(product string, depth int) (*BookResponse, error) {
	if !s.catalog.Exists(product) {
		return nil, domain.ErrProductNotFound
	}
	if depth < 0 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 0 and 50",
		}
	}

	var view domain.BookView
	if depth == 0 {
		view = s.matcher.BookView(product)
	} else {
		view = s.matcher.TopOfBook(product, depth)
	}

	resp := &BookResponse{
		Product:    product,
		Bids:       view.Bids,
		Asks:       view.Asks,
		SnapshotAt: time.Now(),
	}

	// Spread = best_ask - best_bid (nil if either side empty).
	if len(view.Bids) > 0 && len(view.Asks) > 0 {
		spread := view.Asks[0].Price - view.Bids[0].Price
		resp.Spread = &spread
	}

	return resp, nil
}

// GetDepth returns the cumulative depth curve for a product, up to levels
// price levels per side.
func (s *MarketService) GetDepth(product string, levels int) (*DepthResponse, error) {
	if !s.catalog.Exists(product) {
		return nil, domain.ErrProductNotFound
	}
	if levels < 1 || levels > 50 {
		return nil, &domain.ValidationError{
			Message: "levels must be between 1 and 50",
		}
	}

	bids, asks := s.matcher.Depth(product, levels)
	return &DepthResponse{
		Product:    product,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: time.Now(),
	}, nil
}

// RecentTrades returns up to limit trades for a product, newest first.
func (s *MarketService) RecentTrades(product string, limit int) ([]*domain.Trade, error) {
	if !s.catalog.Exists(product) {
		return nil, domain.ErrProductNotFound
	}
	if limit < 1 || limit > 500 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 500",
		}
	}

	trades := s.tradeStore.ListByProduct(product)

	// Reverse chronological, capped at limit.
	result := make([]*domain.Trade, 0, limit)
	for i := len(trades) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, trades[i])
	}
	return result, nil
}

// GetPrice returns the current reference price for a product, computed as
// VWAP over the configured time window. Falls back to the last trade's
// price when no trades fall in the window. CurrentPrice is nil when no
// trades have ever occurred.
func (s *MarketService) GetPrice(product string) (*PriceResponse, error) {
	if !s.catalog.Exists(product) {
		return nil, domain.ErrProductNotFound
	}

	trades := s.tradeStore.ListByProduct(product)
	windowStart := time.Now().Add(-s.vwapWindow)

	resp := &PriceResponse{
		Product: product,
		Window:  formatDuration(s.vwapWindow),
	}

	if len(trades) == 0 {
		return resp, nil
	}

	lastTrade := trades[len(trades)-1]
	resp.LastTradeAt = &lastTrade.ExecutedAt

	// VWAP: iterate backwards from the tail until executed_at falls
	// outside the window.
	var sumPriceQty int64
	var sumQty int64
	var tradesInWindow int

	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(windowStart) {
			break
		}
		sumPriceQty += t.Price * t.Quantity
		sumQty += t.Quantity
		tradesInWindow++
	}

	resp.TradesInWindow = tradesInWindow

	if sumQty > 0 {
		vwap := sumPriceQty / sumQty
		resp.CurrentPrice = &vwap
	} else {
		resp.CurrentPrice = &lastTrade.Price
	}

	return resp, nil
}

// formatDuration converts a time.Duration to a short string like "5m"
// for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
