package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nailmarket/nailmarket/internal/domain"
	"github.com/nailmarket/nailmarket/internal/service"
)

// MarketHandler handles HTTP requests for product and market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// ListProducts handles GET /products.
func (h *MarketHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{
		"products": h.marketSvc.Products(),
	})
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count"`
}

// bookResponse is the JSON response for GET /products/{product}/book.
type bookResponse struct {
	Product    string              `json:"product"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *float64            `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

// GetBook handles GET /products/{product}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	depth := 0 // all levels by default
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be an integer")
			return
		}
		depth = d
	}

	book, err := h.marketSvc.GetBook(product, depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := bookResponse{
		Product:    book.Product,
		Bids:       buildBookLevels(book.Bids),
		Asks:       buildBookLevels(book.Asks),
		SnapshotAt: formatTime(book.SnapshotAt),
	}
	if book.Spread != nil {
		s := domain.CentsToDollars(*book.Spread)
		resp.Spread = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// depthLevelResponse is a single point of the depth curve.
type depthLevelResponse struct {
	Price            float64 `json:"price"`
	Quantity         int64   `json:"quantity"`
	CumulativeVolume int64   `json:"cumulative_volume"`
}

// depthResponse is the JSON response for GET /products/{product}/depth.
type depthResponse struct {
	Product    string               `json:"product"`
	Bids       []depthLevelResponse `json:"bids"`
	Asks       []depthLevelResponse `json:"asks"`
	SnapshotAt string               `json:"snapshot_at"`
}

// GetDepth handles GET /products/{product}/depth.
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	levels := 20
	if v := r.URL.Query().Get("levels"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "levels must be an integer")
			return
		}
		levels = l
	}

	d, err := h.marketSvc.GetDepth(product, levels)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, depthResponse{
		Product:    d.Product,
		Bids:       buildDepthLevels(d.Bids),
		Asks:       buildDepthLevels(d.Asks),
		SnapshotAt: formatTime(d.SnapshotAt),
	})
}

// tradesResponse is the JSON response for GET /products/{product}/trades.
type tradesResponse struct {
	Product string          `json:"product"`
	Trades  []tradeResponse `json:"trades"`
}

// ListTrades handles GET /products/{product}/trades.
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = l
	}

	trades, err := h.marketSvc.RecentTrades(product, limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradesResponse{
		Product: product,
		Trades:  buildTradeResponses(trades),
	})
}

// priceResponse is the JSON response for GET /products/{product}/price.
type priceResponse struct {
	Product        string   `json:"product"`
	CurrentPrice   *float64 `json:"current_price"`
	Window         string   `json:"window"`
	TradesInWindow int      `json:"trades_in_window"`
	LastTradeAt    *string  `json:"last_trade_at"`
}

// GetPrice handles GET /products/{product}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	price, err := h.marketSvc.GetPrice(product)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := priceResponse{
		Product:        price.Product,
		Window:         price.Window,
		TradesInWindow: price.TradesInWindow,
	}
	if price.CurrentPrice != nil {
		p := domain.CentsToDollars(*price.CurrentPrice)
		resp.CurrentPrice = &p
	}
	if price.LastTradeAt != nil {
		s := formatTime(*price.LastTradeAt)
		resp.LastTradeAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

func buildBookLevels(levels []domain.BookLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = bookLevelResponse{
			Price:      domain.CentsToDollars(l.Price),
			Quantity:   l.Quantity,
			OrderCount: l.OrderCount,
		}
	}
	return out
}

func buildDepthLevels(levels []domain.DepthLevel) []depthLevelResponse {
	out := make([]depthLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = depthLevelResponse{
			Price:            domain.CentsToDollars(l.Price),
			Quantity:         l.Quantity,
			CumulativeVolume: l.CumulativeVolume,
		}
	}
	return out
}

// mapMarketError maps domain errors to HTTP responses for market endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", "unknown product")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
