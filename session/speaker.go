package session

import (
	"time"

	"ward/etc"
)

// SpeakerEngine attributes a newly transcribed line to a speaker role.
//
// Best-effort heuristic: clinical utterances tend to come in short runs from
// one speaker, so absent any signal the last role repeats. A silence gap
// longer than SilenceGap reads as a turn change and flips the role. The first
// line of a session gets the role seeded from the session's speaker map.
// Misattribution only affects display labels, never suggestion triggering.
type SpeakerEngine struct {
	SilenceGap time.Duration
	Clock      etc.Clock
}

// Infer assigns a role for the next line of sess. It reads the bounded turn
// history in st but does not record the turn; the caller records it once the
// line has been accepted.
func (e *SpeakerEngine) Infer(st *RuntimeState, sess *Session) Role {
	now := e.Clock.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.turns) == 0 {
		return sess.SeedRole()
	}
	last := st.turns[len(st.turns)-1].Role

	if e.SilenceGap > 0 && !st.lastFragmentAt.IsZero() &&
		now.Sub(st.lastFragmentAt) >= e.SilenceGap {
		return alternate(last)
	}
	return last
}

func alternate(r Role) Role {
	switch r {
	case RoleDoctor:
		return RolePatient
	case RolePatient:
		return RoleDoctor
	default:
		return RoleDoctor
	}
}
