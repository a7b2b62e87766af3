package server

import "net/http"

// SetupRoutes returns the chat listener's ServeMux. WebSocket upgrades are
// accepted on any path so browsers can connect to the bare host:port.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/", s.WebSocketHandler)
	return mux
}
