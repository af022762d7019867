// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/recoblocks/internal/logging"
	ws "github.com/tomtom215/recoblocks/internal/websocket"
)

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkStreamOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkStreamOrigin accepts requests without an Origin header (server side
// consumers) and browser requests from an allowed origin.
func (h *Handler) checkStreamOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.streamOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("Ticket stream rejected: origin not allowed")
	return false
}

// TicketStream upgrades to a websocket that reports every new version of
// the ticket. The first message carries the current version.
//
// @Summary Follow ticket updates
// @Description Pushes ticket_update messages; fetch the payload from the updates endpoint
// @Tags Recommendations
// @Param ticketID path string true "Ticket ID"
// @Success 101 {string} string "Switching Protocols"
// @Failure 404 {object} models.APIResponse "Ticket missing or expired"
// @Failure 503 {object} models.APIResponse "Ticket stream unavailable"
// @Router /reco/tickets/{ticketID}/stream [get]
func (h *Handler) TicketStream(w http.ResponseWriter, r *http.Request) {
	if h.streamHub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Ticket stream unavailable", nil)
		return
	}

	ticket, err := h.tickets.Get(chi.URLParam(r, "ticketID"))
	if err != nil {
		respondTicketError(w, r, err)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Ticket stream upgrade failed")
		return
	}

	client := ws.NewClient(h.streamHub, conn, ticket.ID)
	client.Enqueue(h.streamHub.NewTicketUpdate(ticket.ID, ticket.Version))

	select {
	case h.streamHub.Register <- client:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	client.Start()
}
