// Package session implements the dashboard synchronization engine. A
// session starts a synthetic event generator immediately so the view is
// never empty, races it against a live subscription, and cuts over to the
// live stream exactly once. All state mutation happens on a single
// goroutine; timer ticks and network frames are merged into one ordered
// queue of events.
package session

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"classwatch/internal/alert"
	"classwatch/internal/config"
	"classwatch/internal/feed"
	"classwatch/internal/ingest"
	"classwatch/internal/model"
	"classwatch/internal/subjects"
)

type State string

const (
	StateInit      State = "init"
	StateSynthetic State = "synthetic_active"
	StateLive      State = "live_active"
	StateClosed    State = "closed"
)

// LiveSource is the live side of the race. Events() carries validated
// live events; Up() signals an established connection. Close must be
// idempotent.
type LiveSource interface {
	Events() <-chan model.ActivityEvent
	Up() <-chan struct{}
	Close() error
}

type Snapshot struct {
	State    State
	Feed     []model.ActivityEvent
	Subjects []model.SubjectState
	Alerts   []model.Alert
}

type Session struct {
	cfg    config.SessionConfig
	clock  clockwork.Clock
	logger *slog.Logger
	alerts *alert.Engine
	live   LiveSource

	events  chan model.ActivityEvent
	cmds    chan func()
	done    chan struct{}
	stopped chan struct{}
	closing sync.Once

	// Everything below is owned by the run loop.
	state    State
	feed     *feed.Buffer
	subjects *subjects.Store
	alertLog *feed.AlertList
	genStop  chan struct{}
}

type Option func(*Session)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithRoster seeds subject states with display names before any event
// arrives. A missing or failed roster simply leaves this empty.
func WithRoster(entries []model.RosterEntry) Option {
	return func(s *Session) {
		for _, e := range entries {
			s.subjects.SetName(e.SubjectID, e.Name)
		}
	}
}

func New(cfg config.SessionConfig, live LiveSource, opts ...Option) *Session {
	if cfg.FeedCapacity <= 0 {
		cfg.FeedCapacity = 200
	}
	if cfg.AlertCapacity <= 0 {
		cfg.AlertCapacity = 20
	}
	s := &Session{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		alerts:   alert.NewEngine(cfg.AlertTokens),
		live:     live,
		events:   make(chan model.ActivityEvent, 64),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		state:    StateInit,
		feed:     feed.NewBuffer(cfg.FeedCapacity),
		subjects: subjects.NewStore(),
		alertLog: feed.NewAlertList(cfg.AlertCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the synthetic generator and the live race, then the
// reconciliation loop. The session is SYNTHETIC_ACTIVE immediately.
func (s *Session) Start() {
	s.state = StateSynthetic
	s.genStop = make(chan struct{})
	startGenerator(s.clock, s.cfg.SyntheticInterval, s.rosterIDs(), s.events, s.genStop)
	if s.live != nil {
		go s.pumpLive()
	}
	go s.run()
	if s.logger != nil {
		s.logger.Info("session started", "state", string(s.state))
	}
}

func (s *Session) rosterIDs() []string {
	states := s.subjects.All()
	ids := make([]string, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.SubjectID)
	}
	return ids
}

func (s *Session) pumpLive() {
	upSeen := false
	up := s.live.Up()
	events := s.live.Events()
	for {
		select {
		case <-up:
			if !upSeen {
				upSeen = true
				s.postCutoverSignal()
			}
			up = nil
		case ev, ok := <-events:
			if !ok {
				return
			}
			ev.Source = model.SourceLive
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// postCutoverSignal promotes a connection-open signal into the loop so the
// transition happens even before the first live delivery.
func (s *Session) postCutoverSignal() {
	select {
	case s.cmds <- func() { s.cutover("connection_open") }:
	case <-s.stopped:
	}
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			s.teardown()
			return
		}
	}
}

func (s *Session) handleEvent(ev model.ActivityEvent) {
	if ev.Source == model.SourceSynthetic && s.state == StateLive {
		// Late tick that lost the race; must not reach the feed.
		return
	}
	if ev.Source == model.SourceLive && s.state != StateLive {
		s.cutover("first_delivery")
	}
	s.reconcile(ev)
}

// cutover performs the one-way SYNTHETIC_ACTIVE -> LIVE_ACTIVE transition.
// Stopping the generator is idempotent: the handle is cleared exactly once
// and never re-armed within the session.
func (s *Session) cutover(trigger string) {
	if s.state == StateLive || s.state == StateClosed {
		return
	}
	s.stopGenerator()
	s.state = StateLive
	if s.logger != nil {
		s.logger.Info("cut over to live stream", "trigger", trigger)
	}
}

func (s *Session) stopGenerator() {
	if s.genStop != nil {
		close(s.genStop)
		s.genStop = nil
	}
}

// reconcile is the single logical update applied per event regardless of
// origin. It runs only on the loop goroutine, so feed, subject state, and
// alerts can never interleave partial updates.
func (s *Session) reconcile(ev model.ActivityEvent) {
	if ev.SubjectID == "" {
		ev.SubjectID = ingest.SynthesizeSubjectID()
	}
	s.feed.Add(ev)
	s.subjects.Apply(ev)
	if s.alerts.Match(ev.Status) {
		s.alertLog.Add(s.alerts.New(ev))
	}
}

func (s *Session) teardown() {
	s.stopGenerator()
	if s.live != nil {
		if err := s.live.Close(); err != nil && s.logger != nil {
			s.logger.Warn("closing live source", "err", err)
		}
	}
	s.state = StateClosed
	if s.logger != nil {
		s.logger.Info("session closed")
	}
}

// do runs fn on the loop goroutine. Once the loop has exited the state is
// frozen and fn may run directly.
func (s *Session) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
		<-done
	case <-s.stopped:
		fn()
	}
}

func (s *Session) State() State {
	var state State
	s.do(func() { state = s.state })
	return state
}

func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.do(func() {
		snap = Snapshot{
			State:    s.state,
			Feed:     s.feed.List(0),
			Subjects: s.subjects.All(),
			Alerts:   s.alertLog.List(),
		}
	})
	return snap
}

// Dismiss removes a single alert by id, out of order.
func (s *Session) Dismiss(id string) bool {
	var ok bool
	s.do(func() { ok = s.alertLog.Dismiss(id) })
	return ok
}

// Close tears the session down: generator and live connection are released
// exactly once each, even if the live side never came up. Safe to call any
// number of times.
func (s *Session) Close() {
	s.closing.Do(func() { close(s.done) })
	<-s.stopped
}
