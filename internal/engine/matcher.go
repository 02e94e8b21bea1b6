package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/store"
)

// Matcher implements price-time-priority matching for limit orders.
// All writes to a product's order set go through Submit or Cancel, which
// serialize behind that product's book lock; different products match
// independently.
type Matcher struct {
	books      *BookManager
	orderStore *store.OrderStore
	tradeStore *store.TradeStore
	catalog    *domain.ProductCatalog

	// Injected so tests can pin timestamps and identities.
	now   func() time.Time
	newID func() string
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	books *BookManager,
	orderStore *store.OrderStore,
	tradeStore *store.TradeStore,
	catalog *domain.ProductCatalog,
) *Matcher {
	return &Matcher{
		books:      books,
		orderStore: orderStore,
		tradeStore: tradeStore,
		catalog:    catalog,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Submit processes an incoming limit order through the matching engine.
// It validates quantity, price, and product, runs the match loop against
// the opposite side of the book, and rests any unfilled remainder.
// The incoming order is recorded even when fully filled at submission,
// so it remains queryable as a historical record.
//
// The caller must provide an Order with OwnerID, Side, Product, Price,
// and Quantity set. The matcher assigns OrderID and CreatedAt and manages
// all status transitions.
//
// Every failure path precedes the first mutation: a rejected submission
// leaves the order set, trade log, and book untouched.
//
// The per-product write lock is held for the entire matching pass.
func (m *Matcher) Submit(order *domain.Order) ([]*domain.Trade, error) {
	if order.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if order.Price <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	if order.Side != domain.OrderSideBuy && order.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !m.catalog.Exists(order.Product) {
		return nil, domain.ErrProductNotFound
	}

	book := m.books.GetOrCreate(order.Product)

	book.mu.Lock()
	defer book.mu.Unlock()

	order.OrderID = m.newID()
	order.CreatedAt = m.now()
	order.FilledQuantity = 0
	order.Status = domain.OrderStatusActive
	order.Trades = []*domain.Trade{}

	executedAt := order.CreatedAt
	var trades []*domain.Trade

	for order.Remaining() > 0 {
		// Best opposite entry: lowest ask for an incoming buy, highest
		// bid for an incoming sell. The tree's (price, time, id) order
		// gives the FIFO tie-break among equal prices.
		var best bookEntry
		var found bool
		if order.Side == domain.OrderSideBuy {
			best, found = book.bestAsk()
		} else {
			best, found = book.bestBid()
		}
		if !found {
			break
		}

		// Price compatibility: stop at the first non-crossing level.
		if order.Side == domain.OrderSideBuy {
			if best.Price > order.Price {
				break
			}
		} else {
			if best.Price < order.Price {
				break
			}
		}

		resting := best.Order

		matched := order.Remaining()
		if resting.Remaining() < matched {
			matched = resting.Remaining()
		}

		order.FilledQuantity += matched
		resting.FilledQuantity += matched

		if order.Remaining() == 0 {
			order.Status = domain.OrderStatusFilled
		}
		if resting.Remaining() == 0 {
			resting.Status = domain.OrderStatusFilled
		}

		var buyOrder, sellOrder *domain.Order
		if order.Side == domain.OrderSideBuy {
			buyOrder, sellOrder = order, resting
		} else {
			buyOrder, sellOrder = resting, order
		}

		// Execution price is always the resting order's limit price.
		trade := &domain.Trade{
			TradeID:     m.newID(),
			Product:     order.Product,
			BuyOrderID:  buyOrder.OrderID,
			SellOrderID: sellOrder.OrderID,
			Quantity:    matched,
			Price:       resting.Price,
			ExecutedAt:  executedAt,
		}

		order.Trades = append(order.Trades, trade)
		resting.Trades = append(resting.Trades, trade)
		trades = append(trades, trade)

		m.tradeStore.Append(trade)

		if resting.Remaining() == 0 {
			book.remove(resting.OrderID)
		}
	}

	m.orderStore.Create(order)

	if order.Remaining() > 0 {
		book.insert(order)
	}

	return trades, nil
}

// Cancel cancels an active order. It acquires the per-product write lock,
// re-validates the status under the lock, removes the order from the book,
// and marks it cancelled. Cancellation is terminal: the order's filled
// quantity never changes afterwards.
//
// Returns domain.ErrUnknownOrder if the order does not exist and
// domain.ErrAlreadyTerminal if it is already filled or cancelled.
func (m *Matcher) Cancel(orderID string) (*domain.Order, error) {
	order, err := m.orderStore.Get(orderID)
	if err != nil {
		return nil, domain.ErrUnknownOrder
	}

	if order.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}

	book := m.books.GetOrCreate(order.Product)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Re-check under lock: a concurrent match may have filled it.
	if order.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}

	book.remove(order.OrderID)

	now := m.now()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now

	return order, nil
}

// Snapshot returns a copy of the order taken under its product's book
// read lock, so a reader never observes fields mid-fill. The trade list
// is copied; trades themselves are immutable once appended.
func (m *Matcher) Snapshot(o *domain.Order) *domain.Order {
	book := m.books.GetOrCreate(o.Product)

	book.mu.RLock()
	defer book.mu.RUnlock()

	cp := *o
	cp.Trades = append([]*domain.Trade(nil), o.Trades...)
	return &cp
}

// BookView aggregates the product's resting orders into price levels:
// bids descending, asks ascending. Levels are recomputed from the book on
// every call, so the view never diverges from the order set.
func (m *Matcher) BookView(product string) domain.BookView {
	book := m.books.GetOrCreate(product)

	book.mu.RLock()
	defer book.mu.RUnlock()

	return domain.BookView{
		Product: product,
		Bids:    levels(book.bids, 0),
		Asks:    levels(book.asks, 0),
	}
}

// TopOfBook returns up to max aggregated levels per side.
func (m *Matcher) TopOfBook(product string, max int) domain.BookView {
	book := m.books.GetOrCreate(product)

	book.mu.RLock()
	defer book.mu.RUnlock()

	return domain.BookView{
		Product: product,
		Bids:    levels(book.bids, max),
		Asks:    levels(book.asks, max),
	}
}

// Depth returns the cumulative depth curve for both sides of the book,
// up to max levels per side.
func (m *Matcher) Depth(product string, max int) ([]domain.DepthLevel, []domain.DepthLevel) {
	book := m.books.GetOrCreate(product)

	book.mu.RLock()
	defer book.mu.RUnlock()

	return depth(levels(book.bids, max)), depth(levels(book.asks, max))
}
