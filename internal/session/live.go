package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classwatch/internal/ingest"
	"classwatch/internal/model"
)

const (
	dialTimeout      = 10 * time.Second
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
)

// WSLive subscribes to the live event stream over a websocket. The dialer
// retries with capped backoff, both before the first connection and after a
// drop; once a session has cut over it stays on the live driver and waits
// for the stream to come back rather than reverting to synthetic data.
type WSLive struct {
	url    string
	logger *slog.Logger

	events chan model.ActivityEvent
	up     chan struct{}
	upOnce sync.Once

	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSLive(url string, logger *slog.Logger) *WSLive {
	ctx, cancel := context.WithCancel(context.Background())
	l := &WSLive{
		url:    url,
		logger: logger,
		events: make(chan model.ActivityEvent, 64),
		up:     make(chan struct{}),
		cancel: cancel,
	}
	go l.run(ctx)
	return l
}

func (l *WSLive) Events() <-chan model.ActivityEvent { return l.events }

func (l *WSLive) Up() <-chan struct{} { return l.up }

// Close is idempotent; closing an already-closed source is a no-op.
func (l *WSLive) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.mu.Lock()
		if l.conn != nil {
			_ = l.conn.Close()
		}
		l.mu.Unlock()
	})
	return nil
}

func (l *WSLive) run(ctx context.Context) {
	defer close(l.events)
	delay := reconnectInitial
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if l.logger != nil {
				l.logger.Warn("live connection failed", "err", err, "retry_in", delay)
			}
			if !sleep(ctx, delay) {
				return
			}
			delay *= 2
			if delay > reconnectMax {
				delay = reconnectMax
			}
			continue
		}
		delay = reconnectInitial
		l.upOnce.Do(func() { close(l.up) })
		l.read(ctx, conn)
	}
}

func (l *WSLive) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, l.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return conn, nil
}

func (l *WSLive) read(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && l.logger != nil {
				l.logger.Warn("live stream dropped", "err", err)
			}
			return
		}
		ev, err := ingest.ParseEvent(data)
		if err != nil {
			if l.logger != nil {
				l.logger.Warn("dropping malformed live frame", "err", err)
			}
			continue
		}
		ev.Source = model.SourceLive
		select {
		case l.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
