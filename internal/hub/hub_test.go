package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classwatch/internal/model"
)

type fakeConn struct {
	mu           sync.Mutex
	frames       [][]byte
	closed       bool
	writeErr     error
	block        chan struct{}
	writeStarted chan struct{}
	startedOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writeStarted: make(chan struct{})}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.startedOnce.Do(func() { close(c.writeStarted) })
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func event(subject string) model.ActivityEvent {
	return model.ActivityEvent{SubjectID: subject, Status: model.StatusAttentive, Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New(16, nil)
	defer h.Close()

	c1 := newFakeConn()
	c2 := newFakeConn()
	h.Register(c1)
	h.Register(c2)
	require.Equal(t, 2, h.Count())

	h.Publish(event("S101"))

	require.Eventually(t, func() bool {
		return c1.frameCount() == 1 && c2.frameCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberDropsOwnOldestOnly(t *testing.T) {
	h := New(2, nil)
	defer h.Close()

	slow := newFakeConn()
	slow.block = make(chan struct{})
	fast := newFakeConn()
	h.Register(slow)
	h.Register(fast)

	// First publish is picked up by the slow writer and blocks mid-write.
	h.Publish(event("S1"))
	<-slow.writeStarted

	// Fill the slow subscriber's queue, then overflow it.
	h.Publish(event("S2"))
	h.Publish(event("S3"))
	h.Publish(event("S4"))

	require.Eventually(t, func() bool { return fast.frameCount() == 4 }, time.Second, 5*time.Millisecond)

	close(slow.block)
	require.Eventually(t, func() bool { return slow.frameCount() == 3 }, time.Second, 5*time.Millisecond)

	slow.mu.Lock()
	defer slow.mu.Unlock()
	assert.Contains(t, string(slow.frames[0]), "S1")
	assert.Contains(t, string(slow.frames[1]), "S3")
	assert.Contains(t, string(slow.frames[2]), "S4")
}

func TestWriteErrorUnregistersSubscriber(t *testing.T) {
	h := New(16, nil)
	defer h.Close()

	c := newFakeConn()
	c.writeErr = errors.New("broken pipe")
	h.Register(c)
	h.Publish(event("S101"))

	require.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.True(t, c.closed)
}

func TestUnregisterIdempotent(t *testing.T) {
	h := New(16, nil)
	defer h.Close()

	c := newFakeConn()
	sub := h.Register(c)
	h.Unregister(sub)
	h.Unregister(sub)
	assert.Equal(t, 0, h.Count())
}

func TestUnregisterConcurrentWithPublish(t *testing.T) {
	h := New(4, nil)
	defer h.Close()

	var subs []*Subscriber
	for i := 0; i < 20; i++ {
		subs = append(subs, h.Register(newFakeConn()))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.Publish(event("S101"))
		}
	}()
	go func() {
		defer wg.Done()
		for _, sub := range subs {
			h.Unregister(sub)
		}
	}()
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}

func TestCloseStopsAllSubscribers(t *testing.T) {
	h := New(16, nil)
	c1 := newFakeConn()
	c2 := newFakeConn()
	h.Register(c1)
	h.Register(c2)
	h.Close()

	assert.Equal(t, 0, h.Count())
	require.Eventually(t, func() bool {
		c1.mu.Lock()
		closed1 := c1.closed
		c1.mu.Unlock()
		c2.mu.Lock()
		closed2 := c2.closed
		c2.mu.Unlock()
		return closed1 && closed2
	}, time.Second, 5*time.Millisecond)
}
