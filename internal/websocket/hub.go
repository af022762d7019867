// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recoblocks/internal/metrics"
	"github.com/tomtom215/recoblocks/internal/tickets"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeTicketUpdate = "ticket_update"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// DefaultBroadcastBuffer is the capacity of the hub's notification queue.
const DefaultBroadcastBuffer = 256

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TicketUpdateData is sent when a ticket moves to a new version. Clients
// fetch the payload from the updates endpoint with since set to their
// last seen version.
type TicketUpdateData struct {
	TicketID     string `json:"ticket_id"`
	Version      int    `json:"version"`
	Block        string `json:"block,omitempty"`
	ChangedCount int    `json:"changed_count,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// ticketMessage is a message addressed to the followers of one ticket.
type ticketMessage struct {
	ticketID string
	message  Message
}

// Hub tracks clients by the ticket they follow and fans ticket updates out
// to them. Register and Unregister are processed by RunWithContext.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan ticketMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	now        func() time.Time
	logger     zerolog.Logger
}

var _ tickets.PatchListener = (*Hub)(nil)

// NewHub creates a new Hub
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan ticketMessage, DefaultBroadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		now:        time.Now,
		logger:     logger.With().Str("component", "ticket-stream").Logger(),
	}
}

// RunWithContext processes client lifecycle events and notifications until
// ctx is done, then closes every client and returns ctx.Err().
//
// Lifecycle events are drained before notifications so a client that just
// registered sees the next update.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.TicketStreamClients.Set(float64(total))
	h.logger.Debug().
		Str("ticket_id", client.ticketID).
		Int("total_clients", total).
		Msg("ticket stream client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.TicketStreamClients.Set(float64(total))
	h.logger.Debug().
		Str("ticket_id", client.ticketID).
		Int("total_clients", total).
		Msg("ticket stream client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. ctx.Err()
// is not logged as an error; cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	h.logger.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("ticket stream hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns the clients in id order. mu must be held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers msg to the followers of its ticket in id
// order. Clients whose buffer is full are dropped.
func (h *Hub) broadcastToClients(msg ticketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if client.ticketID != msg.ticketID {
			continue
		}
		select {
		case client.send <- msg.message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.TicketStreamClients.Set(float64(len(h.clients)))
		h.logger.Warn().
			Str("ticket_id", msg.ticketID).
			Int("dropped_clients", len(toRemove)).
			Msg("dropped slow ticket stream clients")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.TicketStreamClients.Set(0)
}

// TicketPatched implements tickets.PatchListener. It never blocks: when
// the queue is full the notification is dropped and counted.
func (h *Hub) TicketPatched(ticketID, block string, result tickets.PatchResult) {
	h.publish(ticketID, &TicketUpdateData{
		TicketID:     ticketID,
		Version:      result.Version,
		Block:        block,
		ChangedCount: result.ChangedCount,
		Timestamp:    h.now().UTC().Format(time.RFC3339),
	})
}

// NewTicketUpdate builds the message a freshly connected client receives
// with the ticket's current version.
func (h *Hub) NewTicketUpdate(ticketID string, version int) Message {
	return Message{
		Type: MessageTypeTicketUpdate,
		Data: &TicketUpdateData{
			TicketID:  ticketID,
			Version:   version,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		},
	}
}

func (h *Hub) publish(ticketID string, data *TicketUpdateData) {
	msg := ticketMessage{
		ticketID: ticketID,
		message:  Message{Type: MessageTypeTicketUpdate, Data: data},
	}
	select {
	case h.broadcast <- msg:
	default:
		metrics.TicketStreamDropped.Inc()
		h.logger.Warn().
			Str("ticket_id", ticketID).
			Int("version", data.Version).
			Msg("broadcast channel full, dropping ticket update")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
