package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// handleRepository serves repository metadata via REST.
// Used for initial page load and debugging.
func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"name":     s.repo.Name(),
		"gitDir":   s.repo.GitDir(),
		"head":     s.repo.GetHEAD(),
		"headRef":  s.repo.GetHEADRef(),
		"detached": s.repo.IsHEADDetached(),
	}
	writeJSON(w, response)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.cacheMu.RLock()
	g := s.cached.graph
	s.cacheMu.RUnlock()
	writeJSON(w, g)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.cacheMu.RLock()
	status := s.cached.status
	s.cacheMu.RUnlock()
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleWebSocket upgrades the connection, replays the current state, and
// keeps the client registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	s.clientsMu.Lock()
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("websocket client connected", "clients", total)

	s.sendInitialState(conn)

	// Block reading until the client goes away; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	total = len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("websocket client disconnected", "clients", total)
}

// sendInitialState replays all cached data to a newly connected client.
func (s *Server) sendInitialState(conn *websocket.Conn) {
	s.cacheMu.RLock()
	messages := []UpdateMessage{
		{Type: MessageTypeGraph, Data: s.cached.graph},
		{Type: MessageTypeStatus, Data: s.cached.status},
	}
	s.cacheMu.RUnlock()

	for _, msg := range messages {
		if msg.Data == nil {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn("failed to send initial state", "err", err)
			return
		}
	}
}
