// WebSocket feed of timeline change events
package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already fronts CORS; the feed carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const eventBuffer = 64

// handleWS streams change events to a connected client as JSON messages.
// A client that falls behind the buffer misses events and should refetch
// the layout.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed").Err(err).Send()
		return
	}

	s.m.WSClientsConnected.Inc()
	events, cancel := s.bus.Subscribe(eventBuffer)

	// Reader goroutine: drains control frames and detects disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		conn.Close()
		s.m.WSClientsConnected.Dec()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
