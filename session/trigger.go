package session

import (
	"time"

	"ward/etc"
)

// TriggerDecision is the outcome of evaluating the batch policy for one line.
type TriggerDecision int

const (
	TriggerNone TriggerDecision = iota
	TriggerFireBatch
)

// TriggerPolicy decides when enough new transcript content has accumulated
// to request a suggestion batch. It fires on whichever comes first: the
// pending-line count reaching Threshold, or Interval elapsing since the last
// batch. Interval <= 0 disables the time trigger.
type TriggerPolicy struct {
	Threshold int
	Interval  time.Duration
	Clock     etc.Clock
}

// OnLineAdded records line against the session's pending window and decides
// whether to fire. The pending window and last-trigger timestamp are reset
// under the same lock before the decision is returned, so a concurrent caller
// evaluating the same session cannot fire again for the same content. On
// fire, the returned slice is the accumulated window, handed off wholesale.
func (p *TriggerPolicy) OnLineAdded(st *RuntimeState, line TranscriptLine) (TriggerDecision, []TranscriptLine) {
	now := p.Clock.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.pending = append(st.pending, line)

	fire := len(st.pending) >= p.Threshold
	if !fire && p.Interval > 0 && now.Sub(st.lastTrigger) >= p.Interval {
		fire = true
	}
	if !fire {
		return TriggerNone, nil
	}

	window := st.pending
	st.pending = nil
	st.lastTrigger = now
	return TriggerFireBatch, window
}
