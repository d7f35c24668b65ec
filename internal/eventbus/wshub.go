package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// KeepAliveInterval is how often the hub pings an idle connection to defeat
// proxy timeouts, mirroring the teacher's SSE keep-alive default.
const KeepAliveInterval = 10 * time.Second

// WSHub bridges a Bus to individual WebSocket connections. One ServeConn
// call handles one subscriber's lifetime.
type WSHub struct {
	bus    *Bus
	logger *slog.Logger
}

// NewWSHub returns a hub relaying events published on bus.
func NewWSHub(bus *Bus, logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{bus: bus, logger: logger}
}

// ServeConn subscribes to discussionID and relays events over conn until the
// connection closes or ctx is cancelled. Blocks for the connection's
// lifetime; callers run it in its own goroutine per accepted connection.
func (h *WSHub) ServeConn(ctx context.Context, conn *websocket.Conn, discussionID string) {
	events, unsubscribe := h.bus.Subscribe(discussionID)
	defer unsubscribe()

	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "context done")
			return

		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.logger.Warn("websocket write failed, dropping subscriber",
					"discussion_id", discussionID, "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				h.logger.Warn("websocket ping failed, dropping subscriber",
					"discussion_id", discussionID, "error", err)
				return
			}
		}
	}
}

// MarshalFrame renders an Event exactly as it is written to the wire, for
// callers that need the JSON without a live connection.
func MarshalFrame(e Event) ([]byte, error) {
	return json.Marshal(e)
}
