package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsBuffer       = 16
)

// serveFrames streams every frame the hub publishes as a JSON text message.
// Clients only need to read; anything they send is discarded.
func (s *Server) serveFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	frames, leave := s.hub.Subscribe(wsBuffer)
	defer leave()
	logf("frame stream opened from %s", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logf("frame stream closed by %s", r.RemoteAddr)
			return
		case b, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulation stopped"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				logf("frame stream to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}
