// Package subs carries partial trip/booking updates over websockets: a hub for
// the server side and a dialing client that satisfies the reconciler's
// subscription contract.
package subs

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/emergency-dispatch/internal/models"
)

// Session is one connected client subscription.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) Send(u models.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(u)
}

// Hub holds update sessions keyed by user id.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{sessions: make(map[string]*Session), log: log}
}

func (h *Hub) Add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[userID]; ok {
		_ = old.conn.Close()
	}
	h.sessions[userID] = &Session{conn: conn}
}

func (h *Hub) Remove(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[userID]; ok {
		_ = s.conn.Close()
		delete(h.sessions, userID)
	}
}

// Publish pushes an update to the user's session, if any.
func (h *Hub) Publish(userID string, u models.Update) error {
	h.mu.RLock()
	s, ok := h.sessions[userID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(u); err != nil {
		if h.log != nil {
			h.log.Warn("ws send error", "user_id", userID, "error", err)
		}
		h.Remove(userID)
		return err
	}
	return nil
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
