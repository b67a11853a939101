package timer

import (
	"context"
	"errors"
	"time"

	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/model"
)

// ErrHostStopped is returned by Host operations after Run has returned.
var ErrHostStopped = errors.New("timer host stopped")

// Ticker is a periodic tick registration.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickSource creates tickers; it is the host's only timing primitive.
type TickSource interface {
	NewTicker(interval time.Duration) Ticker
}

// SystemTicks is a TickSource backed by time.Ticker.
type SystemTicks struct{}

func (SystemTicks) NewTicker(interval time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(interval)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// HostOptions configures a Host. Feed defaults to a new Feed, Ticks to
// SystemTicks and Interval to one second.
type HostOptions struct {
	Recorder    SessionRecorder
	Notifier    Notifier
	Sound       SoundPlayer
	Feed        *Feed
	Ticks       TickSource
	Interval    time.Duration
	CallTimeout time.Duration
}

type hostOp struct {
	apply  func(e *Engine) error
	result chan error
}

// Host confines one Engine to a single goroutine. Operations, collaborator
// continuations and ticks are serialised by Run; the ticker is registered
// only while the engine is running.
type Host struct {
	engine   *Engine
	feed     *Feed
	ticks    TickSource
	interval time.Duration
	ticker   Ticker

	ops   chan hostOp
	posts chan func()
	done  chan struct{}
}

// NewHost builds a host around a new engine. Call Run to start it.
func NewHost(settings model.TimerSettings, opts HostOptions) (*Host, error) {
	if opts.Feed == nil {
		opts.Feed = NewFeed()
	}
	if opts.Ticks == nil {
		opts.Ticks = SystemTicks{}
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	h := &Host{
		feed:     opts.Feed,
		ticks:    opts.Ticks,
		interval: opts.Interval,
		ops:      make(chan hostOp),
		posts:    make(chan func(), 16),
		done:     make(chan struct{}),
	}

	engine, err := NewEngine(settings, Options{
		Recorder:    opts.Recorder,
		Notifier:    opts.Notifier,
		Sound:       opts.Sound,
		Executor:    h,
		Events:      opts.Feed,
		CallTimeout: opts.CallTimeout,
	})
	if err != nil {
		return nil, err
	}
	h.engine = engine
	return h, nil
}

// Go runs a collaborator call on its own goroutine.
func (h *Host) Go(task func()) {
	go task()
}

// Post queues apply for the Run goroutine. It is dropped once the host stops.
func (h *Host) Post(apply func()) {
	select {
	case h.posts <- apply:
	case <-h.done:
	}
}

// Run processes operations until ctx is cancelled.
func (h *Host) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		var tickC <-chan time.Time
		if h.ticker != nil {
			tickC = h.ticker.C()
		}

		select {
		case <-ctx.Done():
			return
		case op := <-h.ops:
			op.result <- op.apply(h.engine)
		case apply := <-h.posts:
			apply()
		case <-tickC:
			h.engine.Tick()
		}
		h.syncTicker()
	}
}

// Done is closed when Run returns.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

func (h *Host) syncTicker() {
	running := h.engine.Running()
	switch {
	case running && h.ticker == nil:
		h.ticker = h.ticks.NewTicker(h.interval)
		logging.Debugf("timer: ticker registered")
	case !running && h.ticker != nil:
		h.ticker.Stop()
		h.ticker = nil
		logging.Debugf("timer: ticker released")
	}
}

func (h *Host) shutdown() {
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
	close(h.done)
	h.feed.Close()
}

func (h *Host) do(ctx context.Context, apply func(e *Engine) error) error {
	op := hostOp{apply: apply, result: make(chan error, 1)}
	select {
	case h.ops <- op:
	case <-h.done:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.result
}

func (h *Host) Start(ctx context.Context) error {
	return h.do(ctx, func(e *Engine) error {
		e.Start()
		return nil
	})
}

func (h *Host) Pause(ctx context.Context) error {
	return h.do(ctx, func(e *Engine) error {
		e.Pause()
		return nil
	})
}

func (h *Host) Stop(ctx context.Context) error {
	return h.do(ctx, func(e *Engine) error {
		e.Stop()
		return nil
	})
}

func (h *Host) Reset(ctx context.Context) error {
	return h.do(ctx, func(e *Engine) error {
		e.Reset()
		return nil
	})
}

func (h *Host) SwitchSession(ctx context.Context, target model.SessionType) error {
	return h.do(ctx, func(e *Engine) error {
		return e.SwitchSession(target)
	})
}

func (h *Host) UpdateSettings(ctx context.Context, settings model.TimerSettings) error {
	return h.do(ctx, func(e *Engine) error {
		return e.UpdateSettings(settings)
	})
}

// Snapshot returns the engine state as seen from the Run goroutine.
func (h *Host) Snapshot(ctx context.Context) (State, error) {
	var state State
	err := h.do(ctx, func(e *Engine) error {
		state = e.Snapshot()
		return nil
	})
	return state, err
}

// Subscribe returns a channel of engine events; it is closed when the host stops.
func (h *Host) Subscribe(buffer int) <-chan Event {
	return h.feed.Subscribe(buffer)
}

func (h *Host) Unsubscribe(sub <-chan Event) {
	h.feed.Unsubscribe(sub)
}
