//go:build !js || !wasm

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPingPeriod = 30 * time.Second
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is gated by the admin key, not by origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// sessionEventsHandler streams the session state as JSON text frames: the
// current state first, then every change until either side disconnects.
func (s *Server) sessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session events upgrade failed")
		return
	}
	defer conn.Close()

	states, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Session events subscriber connected")
	defer s.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Session events subscriber disconnected")

	for {
		select {
		case st, ok := <-states:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
