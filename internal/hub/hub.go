// Package hub fans ingested events out to live subscribers. Each
// subscriber owns a bounded outbound queue; a slow subscriber loses its own
// oldest queued frames and never delays the publisher or its peers.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"classwatch/internal/model"
	"classwatch/internal/telemetry"
)

const defaultSubscriberBuffer = 16

// Conn is the transport a subscriber writes to. The websocket endpoint
// adapts gorilla connections to this; tests use in-memory fakes.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

type Subscriber struct {
	conn Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *Subscriber) run(h *Hub) {
	defer h.Unregister(s)
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(data); err != nil {
				if h.logger != nil {
					h.logger.Warn("subscriber write failed", "err", err)
				}
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	buffer int
	logger *slog.Logger
}

func New(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Register(conn Conn) *Subscriber {
	sub := &Subscriber{
		conn: conn,
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	telemetry.SetSubscribers(count)
	if h.logger != nil {
		h.logger.Info("subscriber registered", "subscribers", count)
	}
	go sub.run(h)
	return sub
}

// Unregister is idempotent and safe to call concurrently with Publish.
func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, exists := h.subs[sub]
	delete(h.subs, sub)
	count := len(h.subs)
	h.mu.Unlock()
	sub.stop()
	if !exists {
		return
	}
	telemetry.SetSubscribers(count)
	if h.logger != nil {
		h.logger.Info("subscriber unregistered", "subscribers", count)
	}
}

// Publish sends the event to every registered subscriber. When a
// subscriber's queue is full the oldest queued frame for that subscriber is
// dropped to make room; the publisher never blocks.
func (h *Hub) Publish(ev model.ActivityEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("marshal broadcast event", "err", err)
		}
		return
	}
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.enqueue(sub, data)
	}
}

func (h *Hub) enqueue(sub *Subscriber, data []byte) {
	select {
	case sub.send <- data:
		return
	default:
	}
	// Queue full: evict the oldest frame for this subscriber only.
	select {
	case <-sub.send:
		telemetry.BroadcastDropped()
		if h.logger != nil {
			h.logger.Debug("slow subscriber, dropped oldest queued frame")
		}
	default:
	}
	select {
	case sub.send <- data:
	default:
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*Subscriber]struct{})
	h.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
	telemetry.SetSubscribers(0)
}
