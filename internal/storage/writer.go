package storage

import (
	"context"
	"log/slog"
	"time"

	"classwatch/internal/model"
	"classwatch/internal/telemetry"
)

// Writer decouples persistence from the broadcast path. Events are queued
// without blocking and written by a single goroutine with bounded backoff
// retries; when the store stays unavailable the event is dropped and logged
// rather than stalling the live view.
type Writer struct {
	store      Store
	queue      chan model.ActivityEvent
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
	done       chan struct{}
}

func NewWriter(store Store, queueSize, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &Writer{
		store:      store,
		queue:      make(chan model.ActivityEvent, queueSize),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (w *Writer) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case ev := <-w.queue:
				w.write(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Enqueue never blocks. A full queue drops the event; durability here is
// best effort by contract.
func (w *Writer) Enqueue(ev model.ActivityEvent) bool {
	if w.store == nil {
		return false
	}
	select {
	case w.queue <- ev:
		return true
	default:
		telemetry.PersistFailure()
		if w.logger != nil {
			w.logger.Warn("persistence queue full, dropping event", "subject_id", ev.SubjectID)
		}
		return false
	}
}

func (w *Writer) write(ctx context.Context, ev model.ActivityEvent) {
	delay := w.retryDelay
	for attempt := 0; attempt < w.maxRetries; attempt++ {
		if attempt > 0 {
			telemetry.PersistRetry()
			if !BackoffSleep(ctx, delay) {
				return
			}
			delay *= 2
		}
		err := w.store.SaveEvent(ctx, ev)
		if err == nil {
			return
		}
		if w.logger != nil {
			w.logger.Warn("persist event failed", "err", err, "attempt", attempt+1, "subject_id", ev.SubjectID)
		}
	}
	telemetry.PersistFailure()
	if w.logger != nil {
		w.logger.Error("persist event abandoned after retries", "subject_id", ev.SubjectID)
	}
}

// Done is closed once the writer goroutine has exited.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
