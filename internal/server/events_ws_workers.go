//go:build js && wasm

package server

import "net/http"

func (s *Server) sessionEventsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotImplemented, "Session events are not supported in js/wasm builds", "")
}
