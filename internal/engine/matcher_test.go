package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/store"
)

const testProduct = `Common Nail 3.5"`

// newTestMatcher creates a Matcher with fresh stores and a deterministic
// clock and ID sequence for testing.
func newTestMatcher() (*Matcher, *store.OrderStore, *store.TradeStore) {
	books := NewBookManager()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	catalog := domain.NewProductCatalog(testProduct, `Brad Nail 1"`)
	m := NewMatcher(books, orderStore, tradeStore, catalog)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	var seq int
	m.newID = func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}

	return m, orderStore, tradeStore
}

// newOrder creates an order struct not yet submitted to the matcher.
func newOrder(owner string, side domain.OrderSide, price, qty int64) *domain.Order {
	return &domain.Order{
		OwnerID:  owner,
		Side:     side,
		Product:  testProduct,
		Price:    price,
		Quantity: qty,
	}
}

func TestSubmit_BuyNoMatch_RestsOnBook(t *testing.T) {
	m, _, _ := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, 495, 1000)
	trades, err := m.Submit(order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(trades))
	}
	if order.Status != domain.OrderStatusActive {
		t.Errorf("expected status active, got %s", order.Status)
	}
	if order.Remaining() != 1000 {
		t.Errorf("expected remaining 1000, got %d", order.Remaining())
	}
	if order.OrderID == "" {
		t.Error("expected order_id to be assigned")
	}

	book := m.books.GetOrCreate(testProduct)
	if book.BidCount() != 1 {
		t.Errorf("expected 1 bid on book, got %d", book.BidCount())
	}
}

func TestSubmit_RejectsInvalidQuantity(t *testing.T) {
	m, orderStore, _ := newTestMatcher()

	for _, qty := range []int64{0, -5} {
		order := newOrder("alice", domain.OrderSideBuy, 100, qty)
		_, err := m.Submit(order)
		if err != domain.ErrInvalidQuantity {
			t.Errorf("qty=%d: expected ErrInvalidQuantity, got %v", qty, err)
		}
		if order.OrderID != "" {
			t.Errorf("qty=%d: rejected order must not get an ID", qty)
		}
	}

	// Nothing committed.
	if _, total := orderStore.ListByOwner("alice", nil, 1, 10); total != 0 {
		t.Errorf("expected no stored orders, got %d", total)
	}
}

func TestSubmit_RejectsInvalidPrice(t *testing.T) {
	m, _, _ := newTestMatcher()

	for _, price := range []int64{0, -100} {
		_, err := m.Submit(newOrder("alice", domain.OrderSideBuy, price, 10))
		if err != domain.ErrInvalidPrice {
			t.Errorf("price=%d: expected ErrInvalidPrice, got %v", price, err)
		}
	}
}

func TestSubmit_RejectsUnknownProduct(t *testing.T) {
	m, _, _ := newTestMatcher()

	order := newOrder("alice", domain.OrderSideBuy, 100, 10)
	order.Product = "Screw 2\""
	_, err := m.Submit(order)
	if err != domain.ErrProductNotFound {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestSubmit_FullMatch(t *testing.T) {
	m, _, _ := newTestMatcher()

	ask := newOrder("seller", domain.OrderSideSell, 150, 5)
	if _, err := m.Submit(ask); err != nil {
		t.Fatalf("ask error: %v", err)
	}

	bid := newOrder("buyer", domain.OrderSideBuy, 150, 5)
	trades, err := m.Submit(bid)
	if err != nil {
		t.Fatalf("bid error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 150 {
		t.Errorf("expected execution price 150, got %d", trades[0].Price)
	}
	if trades[0].Quantity != 5 {
		t.Errorf("expected fill qty 5, got %d", trades[0].Quantity)
	}
	if trades[0].BuyOrderID != bid.OrderID || trades[0].SellOrderID != ask.OrderID {
		t.Errorf("trade order IDs wrong: buy=%s sell=%s", trades[0].BuyOrderID, trades[0].SellOrderID)
	}
	if bid.Status != domain.OrderStatusFilled {
		t.Errorf("expected bid filled, got %s", bid.Status)
	}
	if ask.Status != domain.OrderStatusFilled {
		t.Errorf("expected ask filled, got %s", ask.Status)
	}

	book := m.books.GetOrCreate(testProduct)
	if book.BidCount() != 0 || book.AskCount() != 0 {
		t.Errorf("expected empty book, got bids=%d asks=%d", book.BidCount(), book.AskCount())
	}
}

func TestSubmit_ExecutionPriceIsRestingPrice(t *testing.T) {
	m, _, _ := newTestMatcher()

	// Resting ask at 100; incoming bid at 150 executes at 100.
	m.Submit(newOrder("seller", domain.OrderSideSell, 100, 5))
	trades, _ := m.Submit(newOrder("buyer", domain.OrderSideBuy, 150, 5))
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 100 {
		t.Errorf("expected execution price 100 (resting ask), got %d", trades[0].Price)
	}

	// Resting bid at 150; incoming ask at 100 executes at 150.
	m2, _, _ := newTestMatcher()
	m2.Submit(newOrder("buyer", domain.OrderSideBuy, 150, 5))
	trades2, _ := m2.Submit(newOrder("seller", domain.OrderSideSell, 100, 5))
	if len(trades2) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades2))
	}
	if trades2[0].Price != 150 {
		t.Errorf("expected execution price 150 (resting bid), got %d", trades2[0].Price)
	}
}

func TestSubmit_NoCrossNoTrade(t *testing.T) {
	m, _, _ := newTestMatcher()

	m.Submit(newOrder("seller", domain.OrderSideSell, 200, 5))
	trades, _ := m.Submit(newOrder("buyer", domain.OrderSideBuy, 150, 5))
	if len(trades) != 0 {
		t.Errorf("expected no trades when bid 150 < ask 200, got %d", len(trades))
	}

	book := m.books.GetOrCreate(testProduct)
	if book.BidCount() != 1 || book.AskCount() != 1 {
		t.Errorf("expected both orders resting, got bids=%d asks=%d", book.BidCount(), book.AskCount())
	}
}

func TestSubmit_PartialFill_RestsRemainder(t *testing.T) {
	m, _, _ := newTestMatcher()

	ask := newOrder("seller", domain.OrderSideSell, 100, 3)
	m.Submit(ask)

	bid := newOrder("buyer", domain.OrderSideBuy, 100, 10)
	trades, _ := m.Submit(bid)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Quantity != 3 {
		t.Errorf("expected fill 3, got %d", trades[0].Quantity)
	}
	if bid.Status != domain.OrderStatusActive {
		t.Errorf("expected bid still active, got %s", bid.Status)
	}
	if bid.Remaining() != 7 {
		t.Errorf("expected remaining 7, got %d", bid.Remaining())
	}
	if ask.Status != domain.OrderStatusFilled {
		t.Errorf("expected ask filled, got %s", ask.Status)
	}

	book := m.books.GetOrCreate(testProduct)
	if book.BidCount() != 1 {
		t.Errorf("expected remainder resting, got %d bids", book.BidCount())
	}
	if book.AskCount() != 0 {
		t.Errorf("expected ask removed from book, got %d asks", book.AskCount())
	}
}

func TestSubmit_SweepsMultipleLevels_BestPriceFirst(t *testing.T) {
	m, _, _ := newTestMatcher()

	m.Submit(newOrder("s1", domain.OrderSideSell, 120, 4))
	m.Submit(newOrder("s2", domain.OrderSideSell, 100, 4))
	m.Submit(newOrder("s3", domain.OrderSideSell, 110, 4))

	bid := newOrder("buyer", domain.OrderSideBuy, 115, 10)
	trades, _ := m.Submit(bid)

	// Should sweep 100 then 110, never 120 (does not cross).
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Price != 100 || trades[0].Quantity != 4 {
		t.Errorf("trade[0]: expected 4@100, got %d@%d", trades[0].Quantity, trades[0].Price)
	}
	if trades[1].Price != 110 || trades[1].Quantity != 4 {
		t.Errorf("trade[1]: expected 4@110, got %d@%d", trades[1].Quantity, trades[1].Price)
	}
	if bid.FilledQuantity != 8 || bid.Status != domain.OrderStatusActive {
		t.Errorf("expected bid 8 filled and active, got %d %s", bid.FilledQuantity, bid.Status)
	}
}

func TestSubmit_SamePriceFIFO(t *testing.T) {
	m, _, _ := newTestMatcher()

	first := newOrder("s1", domain.OrderSideSell, 100, 5)
	second := newOrder("s2", domain.OrderSideSell, 100, 5)
	m.Submit(first)
	m.Submit(second)

	bid := newOrder("buyer", domain.OrderSideBuy, 100, 5)
	trades, _ := m.Submit(bid)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].SellOrderID != first.OrderID {
		t.Errorf("expected earliest same-price order to fill first, got %s", trades[0].SellOrderID)
	}
	if first.Status != domain.OrderStatusFilled {
		t.Errorf("expected first ask filled, got %s", first.Status)
	}
	if second.Status != domain.OrderStatusActive {
		t.Errorf("expected second ask still active, got %s", second.Status)
	}
}

func TestSubmit_FullyFilledIncomingStillRecorded(t *testing.T) {
	m, orderStore, _ := newTestMatcher()

	m.Submit(newOrder("seller", domain.OrderSideSell, 100, 5))
	bid := newOrder("buyer", domain.OrderSideBuy, 100, 5)
	m.Submit(bid)

	got, err := orderStore.Get(bid.OrderID)
	if err != nil {
		t.Fatalf("filled incoming order not stored: %v", err)
	}
	if got.Status != domain.OrderStatusFilled {
		t.Errorf("expected stored status filled, got %s", got.Status)
	}
}

func TestSubmit_ProductsAreIndependent(t *testing.T) {
	m, _, _ := newTestMatcher()

	m.Submit(newOrder("seller", domain.OrderSideSell, 100, 5))

	bid := newOrder("buyer", domain.OrderSideBuy, 100, 5)
	bid.Product = `Brad Nail 1"`
	trades, err := m.Submit(bid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("expected no cross-product trades, got %d", len(trades))
	}
}

// Worked example: bids 1000@495 and 800@485, then an incoming sell
// 900@490 crosses only the 495 bid.
func TestSubmit_WorkedExample(t *testing.T) {
	m, _, _ := newTestMatcher()

	bid1 := newOrder("b1", domain.OrderSideBuy, 495, 1000)
	bid2 := newOrder("b2", domain.OrderSideBuy, 485, 800)
	m.Submit(bid1)
	m.Submit(bid2)

	view := m.BookView(testProduct)
	if len(view.Bids) != 2 || len(view.Asks) != 0 {
		t.Fatalf("expected 2 bid levels and 0 ask levels, got %d/%d", len(view.Bids), len(view.Asks))
	}
	if view.Bids[0] != (domain.BookLevel{Price: 495, Quantity: 1000, OrderCount: 1}) {
		t.Errorf("unexpected top bid level: %+v", view.Bids[0])
	}
	if view.Bids[1] != (domain.BookLevel{Price: 485, Quantity: 800, OrderCount: 1}) {
		t.Errorf("unexpected second bid level: %+v", view.Bids[1])
	}

	sell := newOrder("s1", domain.OrderSideSell, 490, 900)
	trades, _ := m.Submit(sell)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Quantity != 900 || trades[0].Price != 495 {
		t.Errorf("expected 900@495, got %d@%d", trades[0].Quantity, trades[0].Price)
	}
	if sell.Status != domain.OrderStatusFilled {
		t.Errorf("expected sell filled, got %s", sell.Status)
	}
	if bid1.FilledQuantity != 900 || bid1.Status != domain.OrderStatusActive {
		t.Errorf("expected bid1 filled 900 and active, got %d %s", bid1.FilledQuantity, bid1.Status)
	}

	view = m.BookView(testProduct)
	if len(view.Asks) != 0 {
		t.Errorf("expected no ask levels, got %d", len(view.Asks))
	}
	if view.Bids[0] != (domain.BookLevel{Price: 495, Quantity: 100, OrderCount: 1}) {
		t.Errorf("expected top bid 100@495 after partial fill, got %+v", view.Bids[0])
	}
}

func TestCancel_ActiveOrder(t *testing.T) {
	m, _, _ := newTestMatcher()

	ask := newOrder("seller", domain.OrderSideSell, 300, 500)
	m.Submit(ask)

	cancelled, err := m.Cancel(ask.OrderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}

	// No ask level at 300 remains.
	view := m.BookView(testProduct)
	if len(view.Asks) != 0 {
		t.Errorf("expected cancelled order off the book, got %d ask levels", len(view.Asks))
	}
}

func TestCancel_UnknownOrder(t *testing.T) {
	m, _, _ := newTestMatcher()

	if _, err := m.Cancel("no-such-order"); err != domain.ErrUnknownOrder {
		t.Errorf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestCancel_AlreadyTerminalIsNoOp(t *testing.T) {
	m, _, _ := newTestMatcher()

	// Cancelled twice.
	ask := newOrder("seller", domain.OrderSideSell, 300, 5)
	m.Submit(ask)
	m.Cancel(ask.OrderID)
	if _, err := m.Cancel(ask.OrderID); err != domain.ErrAlreadyTerminal {
		t.Errorf("expected ErrAlreadyTerminal on second cancel, got %v", err)
	}
	if ask.Status != domain.OrderStatusCancelled {
		t.Errorf("second cancel mutated status: %s", ask.Status)
	}

	// Filled order.
	ask2 := newOrder("seller", domain.OrderSideSell, 100, 5)
	m.Submit(ask2)
	m.Submit(newOrder("buyer", domain.OrderSideBuy, 100, 5))
	if _, err := m.Cancel(ask2.OrderID); err != domain.ErrAlreadyTerminal {
		t.Errorf("expected ErrAlreadyTerminal on filled order, got %v", err)
	}
	if ask2.FilledQuantity != 5 || ask2.Status != domain.OrderStatusFilled {
		t.Errorf("cancel mutated filled order: %d %s", ask2.FilledQuantity, ask2.Status)
	}
}

func TestCancel_CancelledOrderNeverFills(t *testing.T) {
	m, _, _ := newTestMatcher()

	ask := newOrder("seller", domain.OrderSideSell, 100, 5)
	m.Submit(ask)
	m.Cancel(ask.OrderID)

	trades, _ := m.Submit(newOrder("buyer", domain.OrderSideBuy, 100, 5))
	if len(trades) != 0 {
		t.Errorf("cancelled order matched: %d trades", len(trades))
	}
	if ask.FilledQuantity != 0 {
		t.Errorf("cancelled order's filled changed: %d", ask.FilledQuantity)
	}
}

func TestDepth_CumulativeVolumes(t *testing.T) {
	m, _, _ := newTestMatcher()

	m.Submit(newOrder("b1", domain.OrderSideBuy, 495, 1000))
	m.Submit(newOrder("b2", domain.OrderSideBuy, 485, 800))
	m.Submit(newOrder("s1", domain.OrderSideSell, 505, 300))
	m.Submit(newOrder("s2", domain.OrderSideSell, 510, 200))

	bids, asks := m.Depth(testProduct, 10)
	if len(bids) != 2 || len(asks) != 2 {
		t.Fatalf("expected 2 levels per side, got %d/%d", len(bids), len(asks))
	}
	if bids[0].CumulativeVolume != 1000 || bids[1].CumulativeVolume != 1800 {
		t.Errorf("bid cumulative volumes wrong: %d, %d", bids[0].CumulativeVolume, bids[1].CumulativeVolume)
	}
	if asks[0].CumulativeVolume != 300 || asks[1].CumulativeVolume != 500 {
		t.Errorf("ask cumulative volumes wrong: %d, %d", asks[0].CumulativeVolume, asks[1].CumulativeVolume)
	}
}
