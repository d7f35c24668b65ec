package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"symposium/internal/eventbus"
)

// WebSocketHandler serves the event channel of spec §6 on its own
// net/http.Handler rather than through the Fiber app: github.com/coder/
// websocket's Accept takes a stdlib http.ResponseWriter/*http.Request pair,
// which Fiber's fasthttp transport does not produce, so cmd/server/main.go
// runs this on a small dedicated listener alongside the Fiber REST app
// (the same split github.com/labstack/echo-based services in the pack
// avoid by already sitting on net/http).
type WebSocketHandler struct {
	hub    *eventbus.WSHub
	logger *slog.Logger
}

// NewWebSocketHandler returns a handler relaying bus's events.
func NewWebSocketHandler(bus *eventbus.Bus, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: eventbus.NewWSHub(bus, logger), logger: logger}
}

// ServeHTTP expects requests of the form /discussions/{id}/ws and upgrades
// the connection, blocking for its lifetime.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := discussionIDFromWSPath(r.URL.Path)
	if id == "" {
		http.Error(w, "missing discussion id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "discussion_id", id, "error", err)
		return
	}

	h.hub.ServeConn(r.Context(), conn, id)
}

// NewWebSocketMux returns a ready-to-serve mux exposing the handler at
// /discussions/{id}/ws, for cmd/server/main.go to hand to its dedicated
// net/http.Server.
func NewWebSocketMux(bus *eventbus.Bus, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/discussions/", NewWebSocketHandler(bus, logger))
	return mux
}

func discussionIDFromWSPath(path string) string {
	path = strings.TrimPrefix(path, "/discussions/")
	path = strings.TrimSuffix(path, "/ws")
	path = strings.TrimSuffix(path, "/")
	if strings.Contains(path, "/") {
		return ""
	}
	return path
}
