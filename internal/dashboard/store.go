package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/observe"
)

// Event is published to subscribers after every successful dispatch.
type Event struct {
	// Action is the [Action.Name] of the transition.
	Action string `json:"type"`

	// State is the state after the transition.
	State State `json:"state"`

	At time.Time `json:"at"`
}

// StoreConfig holds the dependencies of a [Store].
type StoreConfig struct {
	// Seed is the call log the store starts from.
	Seed []calls.Record

	// Mirror, if set, receives every touched record. Writes happen on the
	// goroutine running [Store.RunMirror].
	Mirror calls.Mirror

	// MirrorQueue bounds the pending mirror writes. Default: 256.
	MirrorQueue int

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now overrides the clock used for event timestamps.
	Now func() time.Time
}

type mirrorOp struct {
	reset  bool
	seed   []calls.Record
	record calls.Record
}

type subscriber struct {
	ch chan Event
}

// Store holds the current [State]. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]*subscriber
	nextSub int
	closed  bool

	mirror  calls.Mirror
	mirrorQ chan mirrorOp
	metrics *observe.Metrics
	now     func() time.Time
}

// NewStore returns a store in the initial state built from cfg.Seed. When a
// mirror is configured a reset to the seed is queued as its first write.
func NewStore(cfg StoreConfig) *Store {
	if cfg.MirrorQueue <= 0 {
		cfg.MirrorQueue = 256
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Store{
		state:   Initial(cfg.Seed),
		subs:    make(map[int]*subscriber),
		mirror:  cfg.Mirror,
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
	if s.mirror != nil {
		s.mirrorQ = make(chan mirrorOp, cfg.MirrorQueue)
		s.mirrorQ <- mirrorOp{reset: true, seed: calls.CloneAll(cfg.Seed)}
	}
	return s
}

// Dispatch applies a and returns a copy of the resulting state. On error
// the state is unchanged and a copy of it is returned alongside the error.
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err != nil {
		cur := s.state.Clone()
		s.mu.Unlock()
		return cur, err
	}
	s.state = next
	s.publishLocked(Event{Action: a.Name(), State: next, At: s.now().UTC()})
	if id := touchedID(a); id != "" {
		if rec, ok := next.Call(id); ok {
			s.enqueueLocked(ctx, mirrorOp{record: rec})
		}
	}
	out := next.Clone()
	s.mu.Unlock()

	s.metrics.RecordDispatch(ctx, a.Name())
	observe.Logger(ctx).Debug("dashboard dispatch", "action", a.Name())
	return out, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Calls returns a copy of the call log, newest first.
func (s *Store) Calls() []calls.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calls.CloneAll(s.state.Calls)
}

// Call returns a copy of the record with id.
func (s *Store) Call(id string) (calls.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Call(id)
	if !ok {
		return calls.Record{}, fmt.Errorf("dashboard: %q: %w", id, ErrCallNotFound)
	}
	return rec, nil
}

// Subscribe registers a listener that receives up to buffer undelivered
// events. A subscriber that falls further behind is dropped and its channel
// closed. The returned func unsubscribes.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := s.subs[id]; ok && cur == sub {
				delete(s.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Close drops every subscriber. Later dispatches still apply but publish
// nothing.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// publishLocked must be called with s.mu held so events reach every
// subscriber in dispatch order.
func (s *Store) publishLocked(ev Event) {
	for id, sub := range s.subs {
		e := ev
		e.State = ev.State.Clone()
		select {
		case sub.ch <- e:
		default:
			slog.Warn("dashboard: dropping slow subscriber", "subscriber", id)
			close(sub.ch)
			delete(s.subs, id)
		}
	}
}

// enqueueLocked must be called with s.mu held so mirror writes keep
// dispatch order.
func (s *Store) enqueueLocked(ctx context.Context, op mirrorOp) {
	if s.mirrorQ == nil {
		return
	}
	select {
	case s.mirrorQ <- op:
	default:
		observe.Logger(ctx).Warn("dashboard: mirror queue full, dropping write", "call_id", op.record.ID)
	}
}

// RunMirror writes queued records to the mirror until ctx is cancelled. It
// returns immediately when no mirror is configured. Mirror errors are
// logged and never affect the in-memory state.
func (s *Store) RunMirror(ctx context.Context) error {
	if s.mirrorQ == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-s.mirrorQ:
			s.applyMirror(ctx, op)
		}
	}
}

func (s *Store) applyMirror(ctx context.Context, op mirrorOp) {
	if op.reset {
		if err := s.mirror.Reset(ctx, op.seed); err != nil {
			slog.Error("dashboard: mirror reset failed", "err", err)
		}
		return
	}
	if err := s.mirror.Upsert(ctx, op.record); err != nil {
		slog.Error("dashboard: mirror write failed", "call_id", op.record.ID, "err", err)
	}
}
