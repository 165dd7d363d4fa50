package dispatch

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession is one connected driver app.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds driver sessions keyed by driver ID.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, driverID)
}

func (r *WSRegistry) OfferRide(driverID string, a Assignment) error {
	return r.push(driverID, struct {
		Event string `json:"event"`
		Assignment
	}{Event: "assignment", Assignment: a})
}

func (r *WSRegistry) NotifyCancel(driverID string, c Cancellation) error {
	return r.push(driverID, struct {
		Event string `json:"event"`
		Cancellation
	}{Event: "cancelled", Cancellation: c})
}

func (r *WSRegistry) push(driverID string, v any) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(v); err != nil {
		r.logger.Warn("ws send failed", "driver_id", driverID, "error", err)
		return err
	}
	return nil
}

var ErrNoSession = errors.New("no websocket session for driver")
