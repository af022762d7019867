// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

/*
Package websocket pushes async ticket updates to connected clients.

Polling the updates endpoint remains the primary delivery path. A client
that prefers push opens GET /api/v1/reco/tickets/{ticketID}/stream and
receives a ticket_update message with the current version on connect and
again every time a patch is applied. The message carries the version and
the patched block only; the client fetches the payload from the updates
endpoint with since set to the last version it rendered.

# Architecture

The package uses gorilla/websocket with a hub-client design:

  - Hub: tracks clients keyed by the ticket they follow. It implements
    tickets.PatchListener so the ticket store notifies it after every
    applied patch.
  - Client: one connection following one ticket, with separate read and
    write pumps.

Delivery is best effort. A full hub queue drops the notification
(recoblocks_ticket_stream_dropped_total) and a client whose buffer is full
is disconnected; both recover by polling.

# Message Format

	{
	    "type": "ticket_update",
	    "data": {
	        "ticket_id": "6f1c...",
	        "version": 3,
	        "block": "competitors",
	        "changed_count": 4,
	        "timestamp": "2026-03-01T12:00:00Z"
	    }
	}

Clients may send {"type": "ping"} and receive {"type": "pong"}. Protocol
level pings are sent every 54 seconds.

# Lifecycle

The hub runs under the supervisor through RunWithContext. On shutdown all
clients are closed and the hub returns ctx.Err().
*/
package websocket
