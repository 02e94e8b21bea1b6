package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	UserID   string  `json:"user_id"`
	Side     string  `json:"side"`
	Product  string  `json:"product"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// orderResponse is the JSON representation of an order.
type orderResponse struct {
	OrderID           string          `json:"order_id"`
	UserID            string          `json:"user_id"`
	Side              string          `json:"side"`
	Product           string          `json:"product"`
	Quantity          int64           `json:"quantity"`
	Price             float64         `json:"price"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	Status            string          `json:"status"`
	CreatedAt         string          `json:"created_at"`
	CancelledAt       *string         `json:"cancelled_at"`
	AveragePrice      *float64        `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// tradeResponse is a single trade in order and market responses.
type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	Product     string  `json:"product"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	ExecutedAt  string  `json:"executed_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		OwnerID:  req.UserID,
		Side:     domain.OrderSide(req.Side),
		Product:  req.Product,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	ordersSubmitted.WithLabelValues(string(order.Side), order.Product).Inc()
	tradesExecuted.WithLabelValues(order.Product).Add(float64(len(order.Trades)))

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.CancelOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	ordersCancelled.WithLabelValues(order.Product).Inc()

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// listOrdersResponse is the JSON response for GET /users/{user_id}/orders.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// ListOrders handles GET /users/{user_id}/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var status *domain.OrderStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.OrderStatus(v)
		status = &st
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = p
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = l
	}

	orders, total, err := h.orderSvc.ListOrders(userID, status, page, limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// buildOrderResponse converts a domain order to its JSON form.
func buildOrderResponse(o *domain.Order) orderResponse {
	var avgPrice *float64
	if avg, ok := o.AveragePrice(); ok {
		v := domain.CentsToDollars(avg)
		avgPrice = &v
	}

	resp := orderResponse{
		OrderID:           o.OrderID,
		UserID:            o.OwnerID,
		Side:              string(o.Side),
		Product:           o.Product,
		Quantity:          o.Quantity,
		Price:             domain.CentsToDollars(o.Price),
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.Remaining(),
		Status:            string(o.Status),
		CreatedAt:         formatTime(o.CreatedAt),
		AveragePrice:      avgPrice,
		Trades:            buildTradeResponses(o.Trades),
	}

	if o.CancelledAt != nil {
		s := formatTime(*o.CancelledAt)
		resp.CancelledAt = &s
	}

	return resp
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = buildTradeResponse(t)
	}
	return result
}

func buildTradeResponse(t *domain.Trade) tradeResponse {
	return tradeResponse{
		TradeID:     t.TradeID,
		Product:     t.Product,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       domain.CentsToDollars(t.Price),
		Quantity:    t.Quantity,
		ExecutedAt:  formatTime(t.ExecutedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		WriteError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be a positive integer")
	case errors.Is(err, domain.ErrInvalidPrice):
		WriteError(w, http.StatusBadRequest, "invalid_price", "price must be greater than 0")
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", "unknown product")
	case errors.Is(err, domain.ErrUnknownOrder):
		WriteError(w, http.StatusNotFound, "unknown_order", "order does not exist")
	case errors.Is(err, domain.ErrAlreadyTerminal):
		WriteError(w, http.StatusConflict, "already_terminal", "order is already filled or cancelled")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
