// Package feed holds the bounded, newest-first buffers backing the
// dashboard: the event feed and the alert list.
package feed

import (
	"sync"

	"classwatch/internal/model"
)

type Buffer struct {
	mu    sync.RWMutex
	buf   []model.ActivityEvent
	limit int
}

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = 200
	}
	return &Buffer{limit: limit}
}

// Add prepends the event; the oldest entry is evicted once at capacity.
func (b *Buffer) Add(ev model.ActivityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) < b.limit {
		b.buf = append(b.buf, model.ActivityEvent{})
	}
	copy(b.buf[1:], b.buf)
	b.buf[0] = ev
}

// List returns up to limit events, newest first. limit <= 0 returns all.
func (b *Buffer) List(limit int) []model.ActivityEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if limit <= 0 || limit > len(b.buf) {
		limit = len(b.buf)
	}
	out := make([]model.ActivityEvent, limit)
	copy(out, b.buf[:limit])
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buf)
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = nil
}

type AlertList struct {
	mu    sync.RWMutex
	buf   []model.Alert
	limit int
}

func NewAlertList(limit int) *AlertList {
	if limit <= 0 {
		limit = 20
	}
	return &AlertList{limit: limit}
}

func (l *AlertList) Add(alert model.Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) < l.limit {
		l.buf = append(l.buf, model.Alert{})
	}
	copy(l.buf[1:], l.buf)
	l.buf[0] = alert
}

// Dismiss removes the alert with the given id, regardless of position.
func (l *AlertList) Dismiss(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.buf {
		if a.ID == id {
			l.buf = append(l.buf[:i], l.buf[i+1:]...)
			return true
		}
	}
	return false
}

func (l *AlertList) List() []model.Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Alert, len(l.buf))
	copy(out, l.buf)
	return out
}

func (l *AlertList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buf)
}

func (l *AlertList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = nil
}
