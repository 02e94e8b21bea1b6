package store

import (
	"sync"

	"github.com/nailmarket/nailmarket/internal/domain"
)

// TradeStore is a thread-safe, append-only in-memory trade log, keyed by
// product, with a secondary index by order ID for involvement queries.
// Trades are chronological and never mutated or deleted.
type TradeStore struct {
	mu      sync.RWMutex
	trades  map[string][]*domain.Trade // product → trades (chronological)
	byOrder map[string][]*domain.Trade // order_id → trades referencing it
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades:  make(map[string][]*domain.Trade),
		byOrder: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the product's chronological list and indexes it
// under both the buy and sell order IDs.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.Product] = append(s.trades[t.Product], t)
	s.byOrder[t.BuyOrderID] = append(s.byOrder[t.BuyOrderID], t)
	s.byOrder[t.SellOrderID] = append(s.byOrder[t.SellOrderID], t)
}

// ListByProduct returns all trades for a product in chronological order.
// Returns an empty slice if no trades exist for the product.
func (s *TradeStore) ListByProduct(product string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[product]
	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// Involving returns every trade whose buy- or sell-order ID is in the
// given set, deduplicated, in no particular order across orders.
func (s *TradeStore) Involving(orderIDs []string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	result := make([]*domain.Trade, 0)
	for _, id := range orderIDs {
		for _, t := range s.byOrder[id] {
			if seen[t.TradeID] {
				continue
			}
			seen[t.TradeID] = true
			result = append(result, t)
		}
	}
	return result
}
