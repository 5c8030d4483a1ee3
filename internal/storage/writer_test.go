package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classwatch/internal/model"
)

type flakyStore struct {
	mu       sync.Mutex
	failures int
	attempts int
	saved    []model.ActivityEvent
}

func (s *flakyStore) Init(context.Context) error { return nil }
func (s *flakyStore) Close() error               { return nil }

func (s *flakyStore) SaveEvent(_ context.Context, ev model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.saved = append(s.saved, ev)
	return nil
}

func (s *flakyStore) RecentEvents(context.Context, int) ([]model.ActivityEvent, error) {
	return nil, nil
}

func (s *flakyStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestWriterRetriesUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &flakyStore{failures: 2}
	w := NewWriter(store, 16, 5, time.Millisecond, nil)
	w.Start(ctx)

	if !w.Enqueue(model.ActivityEvent{SubjectID: "S101", Status: model.StatusAttentive}) {
		t.Fatalf("enqueue rejected")
	}
	waitFor(t, func() bool { return store.savedCount() == 1 })

	store.mu.Lock()
	attempts := store.attempts
	store.mu.Unlock()
	if attempts != 3 {
		t.Fatalf("attempts: %d", attempts)
	}
}

func TestWriterDropsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &flakyStore{failures: 100}
	w := NewWriter(store, 16, 2, time.Millisecond, nil)
	w.Start(ctx)

	w.Enqueue(model.ActivityEvent{SubjectID: "S101"})
	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.attempts >= 2
	})

	// A later event must still get through once the store recovers.
	store.mu.Lock()
	store.failures = 0
	store.mu.Unlock()
	w.Enqueue(model.ActivityEvent{SubjectID: "S102"})
	waitFor(t, func() bool { return store.savedCount() == 1 })

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saved[0].SubjectID != "S102" {
		t.Fatalf("saved: %+v", store.saved)
	}
}

func TestWriterEnqueueNeverBlocks(t *testing.T) {
	store := &flakyStore{}
	w := NewWriter(store, 2, 2, time.Millisecond, nil)
	// Not started: the queue fills and further enqueues must drop, not block.
	w.Enqueue(model.ActivityEvent{SubjectID: "S1"})
	w.Enqueue(model.ActivityEvent{SubjectID: "S2"})
	done := make(chan bool, 1)
	go func() { done <- w.Enqueue(model.ActivityEvent{SubjectID: "S3"}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected drop on full queue")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked")
	}
}

func TestWriterNilStoreRejects(t *testing.T) {
	w := NewWriter(nil, 16, 2, time.Millisecond, nil)
	if w.Enqueue(model.ActivityEvent{SubjectID: "S1"}) {
		t.Fatalf("expected rejection without a store")
	}
}
