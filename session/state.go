package session

import (
	"sync"
	"time"
)

// Turn is one entry in the bounded speaker-turn history.
type Turn struct {
	Role Role
	At   time.Time
}

// RuntimeState is the in-memory state cell for one session. It is created on
// first activity and discarded once the session reaches a terminal status.
//
// Two locks with distinct scopes:
//   - pipeline serializes whole accepted events (append, broadcast, trigger
//     evaluation) so lines go out in acceptance order and the trigger policy
//     sees one event at a time. Provider I/O never runs under it.
//   - mu guards the fields below for the short read-modify operations that
//     also happen outside the pipeline (status reads, on-demand paths).
type RuntimeState struct {
	sessionID string

	pipeline sync.Mutex

	mu             sync.Mutex
	status         Status
	sess           *Session
	pending        []TranscriptLine
	lastTrigger    time.Time
	turns          []Turn
	lastFragmentAt time.Time
	maxTurns       int
}

func newRuntimeState(sess *Session, maxTurns int, now time.Time) *RuntimeState {
	if maxTurns <= 0 {
		maxTurns = 16
	}
	return &RuntimeState{
		sessionID:   sess.ID,
		status:      sess.Status,
		sess:        sess,
		lastTrigger: now,
		maxTurns:    maxTurns,
	}
}

func (st *RuntimeState) Lock()   { st.pipeline.Lock() }
func (st *RuntimeState) Unlock() { st.pipeline.Unlock() }

func (st *RuntimeState) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

func (st *RuntimeState) SetStatus(s Status) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.status = s
	st.sess.Status = s
}

// Session returns the cached session record for this cell.
func (st *RuntimeState) Session() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess
}

// RecordTurn appends to the bounded turn history and marks audio activity.
func (st *RuntimeState) RecordTurn(role Role, at time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.turns = append(st.turns, Turn{Role: role, At: at})
	if len(st.turns) > st.maxTurns {
		st.turns = st.turns[len(st.turns)-st.maxTurns:]
	}
	st.lastFragmentAt = at
}

// LastTurn returns the most recent turn, if any.
func (st *RuntimeState) LastTurn() (Turn, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.turns) == 0 {
		return Turn{}, false
	}
	return st.turns[len(st.turns)-1], true
}

// PendingCount is the number of lines accumulated since the last batch.
func (st *RuntimeState) PendingCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}

// StateStore is the process-wide registry of live session state. Lookup is
// guarded by a read-write lock; per-session work contends only on the cell.
type StateStore struct {
	mu    sync.RWMutex
	cells map[string]*RuntimeState
}

func NewStateStore() *StateStore {
	return &StateStore{cells: make(map[string]*RuntimeState)}
}

func (s *StateStore) Get(sessionID string) (*RuntimeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.cells[sessionID]
	return st, ok
}

// GetOrCreate returns the cell for sessionID, creating it from sess on first
// activity. The winner of a racing create is returned to every caller.
func (s *StateStore) GetOrCreate(sess *Session, maxTurns int, now time.Time) *RuntimeState {
	s.mu.RLock()
	st, ok := s.cells[sess.ID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cells[sess.ID]; ok {
		return st
	}
	st = newRuntimeState(sess, maxTurns, now)
	s.cells[sess.ID] = st
	return st
}

func (s *StateStore) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cells, sessionID)
}

func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}
