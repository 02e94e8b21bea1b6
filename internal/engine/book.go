package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/nailmarket/nailmarket/internal/domain"
)

// bookEntry represents a single order resting on the book.
type bookEntry struct {
	Price     int64
	CreatedAt time.Time
	OrderID   string
	Order     *domain.Order
}

// bidLess defines ordering for the bid side: price descending, then
// created_at ascending, then order_id ascending. Min() therefore returns
// the best bid (highest price, earliest time). The time/ID keys are the
// FIFO tie-break among same-price orders.
func bidLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// askLess defines ordering for the ask side: price ascending, then
// created_at ascending, then order_id ascending. Min() returns the best
// ask (lowest price, earliest time).
func askLess(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// Book maintains the resting bid and ask orders for a single product
// using B-trees, with a secondary index for O(log n) removal by order ID.
// Only active orders with remaining quantity live on the book.
type Book struct {
	product string
	mu      sync.RWMutex
	bids    *btree.BTreeG[bookEntry]
	asks    *btree.BTreeG[bookEntry]
	index   map[string]bookEntry // order_id → entry
}

// NewBook creates an order book for the given product.
func NewBook(product string) *Book {
	const degree = 32
	return &Book{
		product: product,
		bids:    btree.NewG[bookEntry](degree, bidLess),
		asks:    btree.NewG[bookEntry](degree, askLess),
		index:   make(map[string]bookEntry),
	}
}

// insert rests an order on the side matching its Side field.
func (b *Book) insert(o *domain.Order) {
	entry := bookEntry{
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
		OrderID:   o.OrderID,
		Order:     o,
	}
	if o.Side == domain.OrderSideBuy {
		b.bids.ReplaceOrInsert(entry)
	} else {
		b.asks.ReplaceOrInsert(entry)
	}
	b.index[entry.OrderID] = entry
}

// remove deletes an order from the book by order ID using the secondary
// index. It tries both sides since Delete is a no-op when the entry is
// not present.
func (b *Book) remove(orderID string) {
	entry, ok := b.index[orderID]
	if !ok {
		return
	}
	delete(b.index, orderID)
	b.bids.Delete(entry)
	b.asks.Delete(entry)
}

// bestBid returns the highest-priority bid (highest price, earliest time).
func (b *Book) bestBid() (bookEntry, bool) {
	return b.bids.Min()
}

// bestAsk returns the highest-priority ask (lowest price, earliest time).
func (b *Book) bestAsk() (bookEntry, bool) {
	return b.asks.Min()
}

// BidCount returns the number of individual bid orders on the book.
func (b *Book) BidCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (b *Book) AskCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.Len()
}

// levels iterates a side in priority order and aggregates entries into
// at most max price levels. max <= 0 means all levels.
func levels(tree *btree.BTreeG[bookEntry], max int) []domain.BookLevel {
	out := make([]domain.BookLevel, 0)
	tree.Ascend(func(entry bookEntry) bool {
		if len(out) > 0 && out[len(out)-1].Price == entry.Price {
			out[len(out)-1].Quantity += entry.Order.Remaining()
			out[len(out)-1].OrderCount++
			return true
		}
		if max > 0 && len(out) >= max {
			return false
		}
		out = append(out, domain.BookLevel{
			Price:      entry.Price,
			Quantity:   entry.Order.Remaining(),
			OrderCount: 1,
		})
		return true
	})
	return out
}

// depth converts aggregated levels into a depth curve with cumulative
// volume from the best price outward.
func depth(levels []domain.BookLevel) []domain.DepthLevel {
	out := make([]domain.DepthLevel, len(levels))
	var cumulative int64
	for i, l := range levels {
		cumulative += l.Quantity
		out[i] = domain.DepthLevel{
			Price:            l.Price,
			Quantity:         l.Quantity,
			CumulativeVolume: cumulative,
		}
	}
	return out
}

// BookManager is a thread-safe map of product → Book.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*Book),
	}
}

// GetOrCreate returns the book for the given product, creating one if it
// doesn't already exist.
func (bm *BookManager) GetOrCreate(product string) *Book {
	bm.mu.RLock()
	book, ok := bm.books[product]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[product]; ok {
		return book
	}
	book = NewBook(product)
	bm.books[product] = book
	return book
}
