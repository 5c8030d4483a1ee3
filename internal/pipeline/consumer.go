// Package pipeline connects the broker to the live subscribers: every
// validated event is persisted (best effort, off the hot path) and fanned
// out to the broadcast hub.
package pipeline

import (
	"context"
	"log/slog"

	"classwatch/internal/feed"
	"classwatch/internal/model"
	"classwatch/internal/subjects"
)

type Publisher interface {
	Publish(ev model.ActivityEvent)
}

type PersistQueue interface {
	Enqueue(ev model.ActivityEvent) bool
}

type Consumer struct {
	hub      Publisher
	persist  PersistQueue
	recent   *feed.Buffer
	subjects *subjects.Store
	logger   *slog.Logger
}

func NewConsumer(hub Publisher, persist PersistQueue, recent *feed.Buffer, subjectStore *subjects.Store, logger *slog.Logger) *Consumer {
	return &Consumer{
		hub:      hub,
		persist:  persist,
		recent:   recent,
		subjects: subjectStore,
		logger:   logger,
	}
}

// Run consumes validated events until ctx is cancelled. Persistence and
// broadcast are independent failure domains: a degraded store never delays
// delivery to live subscribers.
func (c *Consumer) Run(ctx context.Context, in <-chan model.ActivityEvent) {
	for {
		select {
		case ev := <-in:
			c.Process(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) Process(ev model.ActivityEvent) {
	if c.persist != nil {
		c.persist.Enqueue(ev)
	}
	if c.recent != nil {
		c.recent.Add(ev)
	}
	if c.subjects != nil {
		c.subjects.Apply(ev)
	}
	if c.hub != nil {
		c.hub.Publish(ev)
	}
}
