// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/taibuivan/foundersbase/internal/platform/metrics"
)

// sendBuffer is the number of frames queued per connection before it is dropped.
const sendBuffer = 64

// Hub tracks the live websocket connections of this instance, keyed by user id.
//
// A user may hold several connections (tabs, devices). Delivery never blocks:
// a connection whose buffer is full is closed and must reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty [Hub].
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{}), logger: logger}
}

func (hub *Hub) register(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	set, ok := hub.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		hub.clients[client.userID] = set
	}
	set[client] = struct{}{}
	metrics.WebSocketConnections.Inc()
}

func (hub *Hub) unregister(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.removeLocked(client)
}

// removeLocked closes the client's queue exactly once. Caller holds the write lock.
func (hub *Hub) removeLocked(client *Client) {
	set, ok := hub.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}

	delete(set, client)
	if len(set) == 0 {
		delete(hub.clients, client.userID)
	}
	close(client.send)
	metrics.WebSocketConnections.Dec()
}

// Push encodes the event and delivers it to every local connection of userID.
func (hub *Hub) Push(_ context.Context, userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("chat_hub_encode_failed: %w", err)
	}
	hub.Deliver(userID, payload)
	return nil
}

/*
Deliver queues a raw frame on every local connection of userID.

Returns:
  - int: Number of connections the frame was queued on
*/
func (hub *Hub) Deliver(userID string, payload []byte) int {
	var slow []*Client
	delivered := 0

	hub.mu.RLock()
	for client := range hub.clients[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	hub.mu.RUnlock()

	if len(slow) == 0 {
		return delivered
	}

	hub.mu.Lock()
	for _, client := range slow {
		hub.removeLocked(client)
		metrics.PushDroppedTotal.Inc()
	}
	hub.mu.Unlock()

	hub.logger.Warn("chat_hub_dropped_slow_clients",
		slog.String("user_id", userID),
		slog.Int("count", len(slow)),
	)
	return delivered
}

// Online returns the number of local connections held by userID.
func (hub *Hub) Online(userID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients[userID])
}

// Close drops every local connection. Each client gets a close frame and is
// expected to reconnect, possibly to another instance.
func (hub *Hub) Close() {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	dropped := 0
	for _, set := range hub.clients {
		for client := range set {
			hub.removeLocked(client)
			dropped++
		}
	}

	if dropped > 0 {
		hub.logger.Info("chat_hub_closed", slog.Int("connections", dropped))
	}
}
