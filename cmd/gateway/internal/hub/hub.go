package hub

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/repository"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/models"
)

type ClientInterface interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// Hub fans every tick from the feed out to all connected dashboards as a
// single hub method invocation.
type Hub struct {
	clients map[ClientInterface]bool
	feed    repository.PriceFeed
	event   string
	logger  *zap.Logger
	mu      sync.RWMutex
}

func NewHub(feed repository.PriceFeed, event string, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[ClientInterface]bool),
		feed:    feed,
		event:   event,
		logger:  logger,
	}
}

// Run pumps the feed into Broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	return h.feed.RunPubSub(ctx, h.onFeedMessage)
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug("Client registered", zap.String("client", client.ID()), zap.Int("clients", len(h.clients)))
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client] {
		delete(h.clients, client)
		h.logger.Debug("Client unregistered", zap.String("client", client.ID()), zap.Int("clients", len(h.clients)))
	}
	client.Close()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends update to every registered client.
func (h *Hub) Broadcast(update models.StockUpdate) {
	msg, err := hubproto.Invocation(h.event, update.Symbol, update.Price)
	if err != nil {
		h.logger.Error("Failed to build invocation", zap.String("symbol", update.Symbol), zap.Error(err))
		return
	}
	record, err := hubproto.Encode(msg)
	if err != nil {
		h.logger.Error("Failed to encode invocation", zap.String("symbol", update.Symbol), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.SendBytes(record)
	}
}

// Shutdown closes every client connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) onFeedMessage(symbol string, payload string) {
	var update models.StockUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		h.logger.Warn("Dropping malformed tick", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	// the channel name is authoritative
	update.Symbol = symbol
	h.Broadcast(update)
}
