package pipeline

import (
	"context"
	"testing"
	"time"

	"classwatch/internal/feed"
	"classwatch/internal/model"
	"classwatch/internal/subjects"
)

type fakeHub struct {
	published []model.ActivityEvent
}

func (f *fakeHub) Publish(ev model.ActivityEvent) {
	f.published = append(f.published, ev)
}

type fakeQueue struct {
	enqueued []model.ActivityEvent
	reject   bool
}

func (f *fakeQueue) Enqueue(ev model.ActivityEvent) bool {
	if f.reject {
		return false
	}
	f.enqueued = append(f.enqueued, ev)
	return true
}

func TestProcessFansOut(t *testing.T) {
	h := &fakeHub{}
	q := &fakeQueue{}
	recent := feed.NewBuffer(10)
	subs := subjects.NewStore()
	c := NewConsumer(h, q, recent, subs, nil)

	ev := model.ActivityEvent{SubjectID: "S101", Status: model.StatusPhone, Confidence: 0.95, Timestamp: time.Unix(1700000000, 0).UTC()}
	c.Process(ev)

	if len(h.published) != 1 || h.published[0].SubjectID != "S101" {
		t.Fatalf("published: %+v", h.published)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("enqueued: %+v", q.enqueued)
	}
	if recent.Len() != 1 {
		t.Fatalf("recent: %d", recent.Len())
	}
	state, ok := subs.Get("S101")
	if !ok || state.Status != model.StatusPhone {
		t.Fatalf("subject state: %+v", state)
	}
}

func TestProcessPersistRejectionDoesNotBlockBroadcast(t *testing.T) {
	h := &fakeHub{}
	q := &fakeQueue{reject: true}
	c := NewConsumer(h, q, feed.NewBuffer(10), subjects.NewStore(), nil)

	c.Process(model.ActivityEvent{SubjectID: "S101", Status: model.StatusAttentive})

	if len(h.published) != 1 {
		t.Fatalf("broadcast skipped on persist rejection")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer(&fakeHub{}, nil, feed.NewBuffer(10), subjects.NewStore(), nil)
	in := make(chan model.ActivityEvent)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, in)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}
