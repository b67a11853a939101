package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cortex/workspace/internal/model"
)

type manualTicks struct {
	mu      sync.Mutex
	ch      chan time.Time
	created int
	stopped int
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) NewTicker(time.Duration) Ticker {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
	return manualTicker{source: m}
}

func (m *manualTicks) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, m.stopped
}

type manualTicker struct {
	source *manualTicks
}

func (t manualTicker) C() <-chan time.Time { return t.source.ch }

func (t manualTicker) Stop() {
	t.source.mu.Lock()
	t.source.stopped++
	t.source.mu.Unlock()
}

type syncRecorder struct {
	mu        sync.Mutex
	creates   int
	updates   []SessionUpdate
	createErr error
}

func (r *syncRecorder) CreateSession(context.Context, SessionRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	r.creates++
	return "record", nil
}

func (r *syncRecorder) UpdateSession(_ context.Context, _ string, update SessionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return nil
}

func shortSettings() model.TimerSettings {
	settings := classicSettings()
	settings.WorkDurationMinutes = 1
	settings.ShortBreakMinutes = 1
	return settings
}

func startHost(t *testing.T, opts HostOptions) (*Host, context.CancelFunc) {
	t.Helper()
	host, err := NewHost(shortSettings(), opts)
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go host.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-host.Done()
	})
	return host, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHostCountsDownAndReleasesTicker(t *testing.T) {
	ticks := newManualTicks()
	host, _ := startHost(t, HostOptions{Ticks: ticks})
	ctx := context.Background()

	events := host.Subscribe(512)
	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 60; i++ {
		ticks.ch <- time.Now()
	}

	state, err := host.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.SessionType != model.SessionShortBreak || state.SecondsRemaining != 60 || state.IsRunning {
		t.Fatalf("unexpected state: %+v", state)
	}

	created, stopped := ticks.counts()
	if created != 1 || stopped != 1 {
		t.Fatalf("expected ticker registered and released once, got %d/%d", created, stopped)
	}

	completed := 0
	for len(events) > 0 {
		if event := <-events; event.Type == EventCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected one completed event, got %d", completed)
	}
}

func TestHostPauseReleasesTicker(t *testing.T) {
	ticks := newManualTicks()
	host, _ := startHost(t, HostOptions{Ticks: ticks})
	ctx := context.Background()

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	ticks.ch <- time.Now()
	if err := host.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	state, err := host.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.SecondsRemaining != 59 || state.IsRunning {
		t.Fatalf("unexpected state: %+v", state)
	}
	if _, stopped := ticks.counts(); stopped != 1 {
		t.Fatalf("expected ticker released, got %d stops", stopped)
	}
}

func TestHostSwitchWhileRunningConflicts(t *testing.T) {
	host, _ := startHost(t, HostOptions{Ticks: newManualTicks()})
	ctx := context.Background()

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := host.SwitchSession(ctx, model.SessionLongBreak)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestHostRecordsSessionAsynchronously(t *testing.T) {
	recorder := &syncRecorder{}
	host, _ := startHost(t, HostOptions{Ticks: newManualTicks(), Recorder: recorder})
	ctx := context.Background()

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		state, err := host.Snapshot(ctx)
		return err == nil && state.ActiveSessionID == "record"
	})

	if err := host.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, func() bool {
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		return len(recorder.updates) == 1
	})
}

func TestHostSurfacesRecorderFailure(t *testing.T) {
	recorder := &syncRecorder{createErr: errors.New("database is locked")}
	host, _ := startHost(t, HostOptions{Ticks: newManualTicks(), Recorder: recorder})
	ctx := context.Background()

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool {
		state, err := host.Snapshot(ctx)
		return err == nil && state.LastFailure != nil && state.LastFailure.Op == OpCreateSession
	})

	state, _ := host.Snapshot(ctx)
	if !state.IsRunning {
		t.Fatal("failed record must not stop the countdown")
	}
}

func TestHostStopsWithContext(t *testing.T) {
	host, err := NewHost(shortSettings(), HostOptions{Ticks: newManualTicks()})
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	events := host.Subscribe(8)
	go host.Run(ctx)

	cancel()
	<-host.Done()

	if err := host.Start(context.Background()); !errors.Is(err, ErrHostStopped) {
		t.Fatalf("expected ErrHostStopped, got %v", err)
	}
	for range events {
	}
	if _, ok := <-host.Subscribe(1); ok {
		t.Fatal("subscription after stop should be closed")
	}
}
