package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nailmarket/nailmarket/internal/domain"
)

// TradeFeed broadcasts executed trades to websocket subscribers, one
// subscription per product. It implements service.TradeSink.
type TradeFeed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*feedClient]bool // product → clients
}

// feedClient is one connected subscriber. Outbound messages go through a
// buffered channel so a slow reader never blocks the matching path.
// The send channel is closed exactly once, under the client's own mutex,
// and every send checks the closed flag under that same mutex.
type feedClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan tradeResponse
	closed bool
}

// trySend queues msg without blocking. Returns false when the client is
// closed or its buffer is full.
func (c *feedClient) trySend(msg tradeResponse) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once and closes the connection.
func (c *feedClient) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// NewTradeFeed creates a TradeFeed.
func NewTradeFeed(logger *slog.Logger) *TradeFeed {
	return &TradeFeed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]map[*feedClient]bool),
	}
}

// PublishTrade queues a trade for delivery to every subscriber of the
// trade's product. Subscribers that are closed or cannot keep up are
// dropped.
func (f *TradeFeed) PublishTrade(t *domain.Trade) {
	msg := buildTradeResponse(t)

	f.mu.RLock()
	subscribers := make([]*feedClient, 0, len(f.clients[t.Product]))
	for c := range f.clients[t.Product] {
		subscribers = append(subscribers, c)
	}
	f.mu.RUnlock()

	for _, c := range subscribers {
		if !c.trySend(msg) {
			f.unsubscribe(t.Product, c)
		}
	}
}

// Subscribe handles GET /feed/{product}: upgrades the connection and
// streams trades for the product until the client disconnects.
func (f *TradeFeed) Subscribe(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan tradeResponse, 64),
	}

	f.mu.Lock()
	if f.clients[product] == nil {
		f.clients[product] = make(map[*feedClient]bool)
	}
	f.clients[product][client] = true
	f.mu.Unlock()

	go f.writeLoop(product, client)
	go f.readLoop(product, client)
}

// writeLoop forwards queued trades to the connection. It exits when the
// send channel is closed by unsubscribe.
func (f *TradeFeed) writeLoop(product string, c *feedClient) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			f.unsubscribe(product, c)
			return
		}
	}
}

// readLoop discards inbound messages and tears the client down when the
// connection closes.
func (f *TradeFeed) readLoop(product string, c *feedClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			f.unsubscribe(product, c)
			return
		}
	}
}

// unsubscribe removes a client from the product's set and tears it down.
// Idempotent; safe to call from the read loop, the write loop, and
// publishers concurrently.
func (f *TradeFeed) unsubscribe(product string, c *feedClient) {
	f.mu.Lock()
	delete(f.clients[product], c)
	f.mu.Unlock()
	c.close()
}
