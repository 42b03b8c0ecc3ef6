package api

import (
	"encoding/json"
	"log"
	"net/http"

	"call-review/pkg/session"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type     string            `json:"type"`
	Event    *session.Event    `json:"event,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// WebSocketHandler streams session change events to a UI client. The client
// receives an initial snapshot, then one message per engine event; it can
// send ping or snapshot requests.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, events := s.Events().Subscribe()
	defer s.Events().Unsubscribe(subID)

	snap := s.Snapshot()
	h.sendWS(conn, wsMessage{Type: "snapshot", Snapshot: &snap})

	// All writes happen on this goroutine; the reader only forwards
	// request types over the channel.
	reqs := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case reqs <- msg.Type:
			default:
			}
		}
	}()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			h.sendWS(conn, wsMessage{Type: "event", Event: &ev})
			if ev.Type == session.EventClosed {
				return
			}
		case typ := <-reqs:
			switch typ {
			case "ping":
				h.sendWS(conn, wsMessage{Type: "pong"})
			case "snapshot":
				snap := s.Snapshot()
				h.sendWS(conn, wsMessage{Type: "snapshot", Snapshot: &snap})
			default:
				h.sendWS(conn, wsMessage{Type: "error", Error: "Unknown message type"})
			}
		case <-done:
			return
		}
	}
}

func (h *Handlers) sendWS(conn *websocket.Conn, msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("api: marshal ws message: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("api: ws write: %v", err)
	}
}
