package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"ward/etc"
)

func testState(maxTurns int, now time.Time) *RuntimeState {
	sess := &Session{ID: "s1", ClinicianID: "dr-blake", Status: StatusActive}
	return newRuntimeState(sess, maxTurns, now)
}

func fixedClock(t time.Time) etc.Clock {
	return etc.Clock{NowFunc: func() time.Time { return t }}
}

func TestTriggerFiresAtCountThreshold(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	st := testState(16, now)
	policy := &TriggerPolicy{Threshold: 3, Interval: 0, Clock: fixedClock(now)}

	for i := 0; i < 2; i++ {
		decision, window := policy.OnLineAdded(st, TranscriptLine{Text: fmt.Sprintf("line %d", i)})
		if decision != TriggerNone {
			t.Fatalf("fired at %d lines, threshold is 3", i+1)
		}
		if window != nil {
			t.Fatalf("window returned without fire")
		}
	}

	decision, window := policy.OnLineAdded(st, TranscriptLine{Text: "line 2"})
	if decision != TriggerFireBatch {
		t.Fatal("did not fire at threshold")
	}
	if len(window) != 3 {
		t.Fatalf("window has %d lines, want 3", len(window))
	}
	if st.PendingCount() != 0 {
		t.Errorf("pending count %d after fire, want 0", st.PendingCount())
	}
}

func TestTriggerFiresOnTimeCeiling(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := start
	clock := etc.Clock{NowFunc: func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}}

	st := testState(16, start)
	policy := &TriggerPolicy{Threshold: 100, Interval: 45 * time.Second, Clock: clock}

	decision, _ := policy.OnLineAdded(st, TranscriptLine{Text: "early"})
	if decision != TriggerNone {
		t.Fatal("fired before the ceiling elapsed")
	}

	mu.Lock()
	now = start.Add(46 * time.Second)
	mu.Unlock()

	decision, window := policy.OnLineAdded(st, TranscriptLine{Text: "late"})
	if decision != TriggerFireBatch {
		t.Fatal("did not fire after ceiling elapsed with pending lines")
	}
	if len(window) != 2 {
		t.Errorf("window has %d lines, want 2", len(window))
	}

	// Firing resets the timer: the next line must not fire again.
	decision, _ = policy.OnLineAdded(st, TranscriptLine{Text: "fresh"})
	if decision != TriggerNone {
		t.Error("timer did not reset on fire")
	}
}

func TestTriggerSingleFirePerCrossingUnderConcurrency(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	st := testState(16, now)
	policy := &TriggerPolicy{Threshold: 5, Interval: 0, Clock: fixedClock(now)}

	const workers = 8
	const perWorker = 25
	total := workers * perWorker

	var fires sync.Map
	var fireCount int64
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				decision, window := policy.OnLineAdded(st, TranscriptLine{
					Text: fmt.Sprintf("w%d-%d", w, i),
				})
				if decision == TriggerFireBatch {
					mu.Lock()
					fireCount++
					mu.Unlock()
					for _, line := range window {
						if _, dup := fires.LoadOrStore(line.Text, true); dup {
							t.Errorf("line %q appeared in two windows", line.Text)
						}
					}
					if len(window) != 5 {
						t.Errorf("window has %d lines, want exactly 5", len(window))
					}
				}
			}
		}(w)
	}
	wg.Wait()

	want := int64(total / 5)
	if fireCount != want {
		t.Errorf("%d fires for %d lines, want exactly %d", fireCount, total, want)
	}
	if st.PendingCount() != total%5 {
		t.Errorf("pending %d, want %d", st.PendingCount(), total%5)
	}
}
