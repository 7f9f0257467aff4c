package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Broker carries activity events between instances.
type Broker interface {
	PublishActivity(ctx context.Context, event string, payload []byte) error
	SubscribeActivity(ctx context.Context, handler func(event string, payload []byte)) error
}

// Hub holds the admin websocket connections of this instance and fans
// activity events out to them. With a Broker every instance sees every event.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	broker  Broker
	logger  *zap.Logger
}

// NewHub creates a hub. broker may be nil for a single instance.
func NewHub(broker Broker, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), broker: broker, logger: logger}
}

// Run subscribes to the broker and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	return h.broker.SubscribeActivity(ctx, func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("admin feed joined", zap.String("client_id", c.ID), zap.Int("clients", n))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("admin feed left", zap.String("client_id", c.ID))
}

// ClientCount returns the number of connected admins on this instance.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to local clients only. Slow clients drop messages.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal activity", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers an activity event to admins on every instance. With a
// broker the subscription performs the local delivery, so it happens once.
func (h *Hub) Publish(event string, payload interface{}) {
	if h.broker == nil {
		h.Broadcast(event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal activity", zap.String("event", event), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.broker.PublishActivity(ctx, event, data); err != nil {
		h.logger.Warn("publish activity failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(event, json.RawMessage(data))
	}
}
