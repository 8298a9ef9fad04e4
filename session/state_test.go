package session

import (
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateReturnsOneCellPerSession(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStateStore()
	sess := &Session{ID: "s1", Status: StatusActive}

	const workers = 16
	cells := make([]*RuntimeState, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cells[i] = store.GetOrCreate(sess, 16, now)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if cells[i] != cells[0] {
			t.Fatalf("racing GetOrCreate produced distinct cells")
		}
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d cells, want 1", store.Len())
	}
}

func TestEvictDropsCell(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStateStore()
	sess := &Session{ID: "s1", Status: StatusActive}

	store.GetOrCreate(sess, 16, now)
	store.Evict("s1")

	if _, ok := store.Get("s1"); ok {
		t.Error("cell survived eviction")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d cells after evict, want 0", store.Len())
	}
}

func TestCellsAreIndependentAcrossSessions(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStateStore()

	a := store.GetOrCreate(&Session{ID: "a", Status: StatusActive}, 16, now)
	b := store.GetOrCreate(&Session{ID: "b", Status: StatusActive}, 16, now)

	a.SetStatus(StatusPaused)
	if b.Status() != StatusActive {
		t.Error("status change on one session leaked into another")
	}
}
