// Package ws streams triage events to dashboard clients over websocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/events"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the router level.
		return true
	},
}

// Serve upgrades the connection and forwards broadcast events until the
// client disconnects or the broadcaster closes.
func Serve(b *events.Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		id, ch := b.Subscribe()
		slog.Debug("feed subscriber connected", "subscriber_id", id)

		go writePump(conn, ch)
		go readPump(conn, b, id)
	}
}

func writePump(conn *websocket.Conn, ch chan *models.TriageEvent) {
	for e := range ch {
		payload, err := json.Marshal(e)
		if err != nil {
			slog.Error("error encoding event", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	conn.Close()
}

// readPump discards client messages; its job is detecting disconnects.
func readPump(conn *websocket.Conn, b *events.Broadcaster, id uint64) {
	defer func() {
		b.Unsubscribe(id)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
