package hub

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Conn is one real-time client connection as the hub sees it. Send is
// best-effort, at-most-once: a send error means the event is dropped for that
// connection, never retried.
type Conn interface {
	ID() string
	Send(event string, payload any) error
}

// Hub tracks which connections observe which sessions and fans events out to
// them. Membership is separate from session business state: the hub knows
// nothing about session status or content.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]Conn     // sessionID -> connID -> conn
	conns  map[string]map[string]struct{} // connID -> sessionIDs joined
	log    *log.Logger
}

func New(logger *log.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[string]Conn),
		conns:  make(map[string]map[string]struct{}),
		log:    logger,
	}
}

// Join adds c to the session's group. Joining twice is idempotent.
func (h *Hub) Join(c Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.groups[sessionID]
	if !ok {
		group = make(map[string]Conn)
		h.groups[sessionID] = group
	}
	group[c.ID()] = c

	sessions, ok := h.conns[c.ID()]
	if !ok {
		sessions = make(map[string]struct{})
		h.conns[c.ID()] = sessions
	}
	sessions[sessionID] = struct{}{}
}

// Leave removes c from the session's group and reports whether it was a
// member. Leaving an unjoined session is a no-op.
func (h *Hub) Leave(c Conn, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(c.ID(), sessionID)
}

func (h *Hub) leaveLocked(connID, sessionID string) bool {
	group, ok := h.groups[sessionID]
	if !ok {
		return false
	}
	if _, member := group[connID]; !member {
		return false
	}
	delete(group, connID)
	if len(group) == 0 {
		delete(h.groups, sessionID)
	}
	if sessions, ok := h.conns[connID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.conns, connID)
		}
	}
	return true
}

// RemoveConn drops c from every group it belongs to, returning the sessions
// it was removed from. Called when the physical connection closes.
func (h *Hub) RemoveConn(c Conn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := h.conns[c.ID()]
	left := make([]string, 0, len(sessions))
	for sessionID := range sessions {
		if h.leaveLocked(c.ID(), sessionID) {
			left = append(left, sessionID)
		}
	}
	return left
}

// Broadcast delivers an event to every connection currently joined to the
// session. The member list is snapshotted under the lock; sends happen
// outside it so one slow connection cannot stall membership changes.
func (h *Hub) Broadcast(sessionID, event string, payload any) {
	h.mu.RLock()
	group := h.groups[sessionID]
	members := make([]Conn, 0, len(group))
	for _, c := range group {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.Send(event, payload); err != nil {
			h.log.Debug("dropped event", "conn", c.ID(), "event", event, "error", err)
		}
	}
}

// Members reports how many connections observe the session.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[sessionID])
}
