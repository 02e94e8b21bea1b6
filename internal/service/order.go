package service

import (
	"fmt"
	"regexp"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/engine"
	"github.com/nailmarket/nailmarket/internal/store"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidOrderStatuses lists all valid order status values for filtering.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusActive:    true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
}

// TradeSink receives trades as they execute. Dispatch must not block the
// submission path; implementations fan out asynchronously.
type TradeSink interface {
	PublishTrade(t *domain.Trade)
}

// SubmitOrderRequest represents the input for order submission.
// Price is in dollars; it is converted to cents before matching.
type SubmitOrderRequest struct {
	OwnerID  string
	Side     domain.OrderSide
	Product  string
	Quantity int64
	Price    float64
}

// OrderService handles order submission, retrieval, cancellation, and
// listing. It validates requests before they reach the matcher, so every
// rejection happens with no state mutation.
type OrderService struct {
	matcher    *engine.Matcher
	orderStore *store.OrderStore
	tradeStore *store.TradeStore
	catalog    *domain.ProductCatalog
	sink       TradeSink // optional
}

// NewOrderService creates a new OrderService with the given dependencies.
// sink may be nil when no trade feed is wired.
func NewOrderService(
	matcher *engine.Matcher,
	orderStore *store.OrderStore,
	tradeStore *store.TradeStore,
	catalog *domain.ProductCatalog,
	sink TradeSink,
) *OrderService {
	return &OrderService{
		matcher:    matcher,
		orderStore: orderStore,
		tradeStore: tradeStore,
		catalog:    catalog,
		sink:       sink,
	}
}

// SubmitOrder validates the request, converts the price to cents, runs the
// matching engine, and publishes any executed trades to the sink.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if !userIDRegex.MatchString(req.OwnerID) {
		return nil, &domain.ValidationError{
			Message: "user_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if req.Product == "" {
		return nil, domain.ErrProductNotFound
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if req.Price <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	priceCents, err := domain.DollarsToCents(req.Price)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "price must have at most 2 decimal places",
		}
	}
	if priceCents <= 0 {
		return nil, domain.ErrInvalidPrice
	}

	order := &domain.Order{
		OwnerID:  req.OwnerID,
		Side:     req.Side,
		Product:  req.Product,
		Quantity: req.Quantity,
		Price:    priceCents,
	}

	trades, err := s.matcher.Submit(order)
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		for _, t := range trades {
			s.sink.PublishTrade(t)
		}
	}

	// A resting remainder can be filled by a concurrent submission the
	// moment the book lock is released, so callers get a point-in-time
	// copy rather than the live record.
	return s.matcher.Snapshot(order), nil
}

// GetOrder retrieves a point-in-time copy of an order with all its trades.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	order, err := s.orderStore.Get(orderID)
	if err != nil {
		return nil, err
	}
	return s.matcher.Snapshot(order), nil
}

// CancelOrder cancels an active order. Cancelling an order that is
// already filled or cancelled returns domain.ErrAlreadyTerminal and
// mutates nothing.
func (s *OrderService) CancelOrder(orderID string) (*domain.Order, error) {
	order, err := s.matcher.Cancel(orderID)
	if err != nil {
		return nil, err
	}
	return s.matcher.Snapshot(order), nil
}

// ListOrders returns a paginated list of an owner's orders, any status
// unless a status filter is given, newest first.
func (s *OrderService) ListOrders(ownerID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !userIDRegex.MatchString(ownerID) {
		return nil, 0, &domain.ValidationError{
			Message: "user_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: active, filled, cancelled", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orderStore.ListByOwner(ownerID, status, page, limit)

	snapshots := make([]*domain.Order, len(orders))
	for i, o := range orders {
		snapshots[i] = s.matcher.Snapshot(o)
	}
	return snapshots, total, nil
}

// TradesInvolving returns every trade referencing any of the given order
// IDs. A ledger collaborator uses this to settle balances after the fact.
func (s *OrderService) TradesInvolving(orderIDs []string) []*domain.Trade {
	return s.tradeStore.Involving(orderIDs)
}
