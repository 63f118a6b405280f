// Package ws upgrades player connections and runs their websocket sessions
// against the room they were seated in.
package ws

import (
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"redoubt/server"
)

// HandlerConfig tunes the websocket intake handler.
type HandlerConfig struct {
	Logger *log.Logger
}

// Handler upgrades HTTP requests and hands the connection to a session.
type Handler struct {
	hub      *server.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket handler over the hub.
func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{hub: hub, logger: logger, upgrader: upgrader}
}

// Handle upgrades the request and serves the session until the connection
// drops.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	room, ok := h.hub.Room(playerID)
	if !ok {
		nethttp.Error(w, "unknown player", nethttp.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}

	session := newSession(room, playerID, h.logger)
	session.serve(conn)
}
