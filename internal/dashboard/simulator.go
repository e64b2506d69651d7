package dashboard

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/observe"
)

// DefaultSimulateDelay is how long a simulated call rings before it lands
// in the log.
const DefaultSimulateDelay = 2 * time.Second

// SimulatorConfig holds the tuning knobs of a [Simulator].
type SimulatorConfig struct {
	// Delay defaults to [DefaultSimulateDelay].
	Delay time.Duration

	// Now overrides the clock used for new records.
	Now func() time.Time

	// Rand overrides the source of ids, durations and transcripts.
	Rand calls.Rand
}

// Simulator produces fake inbound calls. At most one simulation is
// outstanding at a time.
type Simulator struct {
	store *Store
	delay atomic.Int64
	now   func() time.Time

	rngMu sync.Mutex
	rng   calls.Rand

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewSimulator returns a simulator that dispatches into store.
func NewSimulator(store *Store, cfg SimulatorConfig) *Simulator {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultSimulateDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Simulator{store: store, now: cfg.Now, rng: cfg.Rand, done: make(chan struct{})}
	s.delay.Store(int64(cfg.Delay))
	return s
}

// SetDelay changes the ring time of later simulations.
func (s *Simulator) SetDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultSimulateDelay
	}
	s.delay.Store(int64(d))
}

// Delay returns the current ring time.
func (s *Simulator) Delay() time.Duration {
	return time.Duration(s.delay.Load())
}

// Start begins a simulation and returns without waiting for the call to
// land. The simulation outlives ctx; only [Simulator.Close] stops it.
func (s *Simulator) Start(ctx context.Context) error {
	if _, err := s.store.Dispatch(ctx, StartSimulation{}); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.land(context.WithoutCancel(ctx)); err != nil {
			observe.Logger(ctx).Warn("simulated call abandoned", "err", err)
		}
	}()
	return nil
}

// Simulate runs a simulation to completion and returns the new record.
// Cancelling ctx abandons the call.
func (s *Simulator) Simulate(ctx context.Context) (calls.Record, error) {
	if _, err := s.store.Dispatch(ctx, StartSimulation{}); err != nil {
		return calls.Record{}, err
	}
	return s.land(ctx)
}

// Close abandons outstanding simulations and waits for them to finish.
func (s *Simulator) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

var errSimulatorClosed = errors.New("simulator closed")

func (s *Simulator) land(ctx context.Context) (calls.Record, error) {
	t := time.NewTimer(s.Delay())
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
		s.abandon(ctx)
		return calls.Record{}, ctx.Err()
	case <-s.done:
		s.abandon(ctx)
		return calls.Record{}, errSimulatorClosed
	}

	// A freshly drawn id can collide with an existing one.
	var err error
	for range 3 {
		rec := s.newRecord()
		if _, err = s.store.Dispatch(ctx, AddCall{Record: rec}); err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrDuplicateCall) {
			break
		}
	}
	s.abandon(ctx)
	return calls.Record{}, err
}

func (s *Simulator) newRecord() calls.Record {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return calls.NewSimulated(s.now(), s.rng)
}

func (s *Simulator) abandon(ctx context.Context) {
	_, _ = s.store.Dispatch(context.WithoutCancel(ctx), StopSimulation{})
}
