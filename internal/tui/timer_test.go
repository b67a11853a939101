package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cortex/workspace/internal/model"
	"cortex/workspace/internal/timer"
)

type memoryRecorder struct {
	mu      sync.Mutex
	created []timer.SessionRequest
	updates map[string]timer.SessionUpdate
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{updates: make(map[string]timer.SessionUpdate)}
}

func (r *memoryRecorder) CreateSession(_ context.Context, req timer.SessionRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, req)
	return fmt.Sprintf("session-%d", len(r.created)), nil
}

func (r *memoryRecorder) UpdateSession(_ context.Context, handle string, update timer.SessionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[handle] = update
	return nil
}

func (r *memoryRecorder) update(handle string) (timer.SessionUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update, ok := r.updates[handle]
	return update, ok
}

func oneMinuteSettings() model.TimerSettings {
	settings := model.DefaultTimerSettings()
	settings.WorkDurationMinutes = 1
	settings.ShortBreakMinutes = 1
	return settings
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	if k == "ctrl+c" {
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// applyPost feeds the next collaborator continuation into the update loop.
func applyPost(t *testing.T, m Model) Model {
	t.Helper()
	select {
	case apply := <-m.rt.executor.posts:
		return send(t, m, postMsg(apply))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for collaborator result")
		return m
	}
}

// drainEvents keeps the subscription from filling up during long tick runs.
func drainEvents(m Model) {
	for {
		select {
		case <-m.rt.events:
		default:
			return
		}
	}
}

func nextEvent(t *testing.T, m Model, want timer.EventType) timer.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-m.rt.events:
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("no %s event", want)
		}
	}
}

func TestModelRunsWorkSessionToBreak(t *testing.T) {
	recorder := newMemoryRecorder()
	m, err := New(Options{Settings: oneMinuteSettings(), Recorder: recorder})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	m, cmd := press(t, m, "s")
	if cmd == nil || !m.State().IsRunning {
		t.Fatal("expected start to begin ticking")
	}
	m = applyPost(t, m)
	if got := m.State().ActiveSessionID; got != "session-1" {
		t.Fatalf("expected active session-1, got %q", got)
	}

	gen := m.rt.tickGen
	for i := 0; i < 60; i++ {
		drainEvents(m)
		m = send(t, m, tickMsg{gen: gen})
	}

	state := m.State()
	if state.SessionType != model.SessionShortBreak || state.IsRunning || state.CompletedWorkSessions != 1 {
		t.Fatalf("unexpected state after completion: %+v", state)
	}
	if m.rt.ticking {
		t.Fatal("tick chain should end with the session")
	}

	if !m.Wait(2 * time.Second) {
		t.Fatal("collaborator calls did not finish")
	}
	update, ok := recorder.update("session-1")
	if !ok || !update.Completed || update.ActualDurationMinutes != 1 {
		t.Fatalf("unexpected record update: %+v (found=%v)", update, ok)
	}

	notification := nextEvent(t, m, timer.EventNotification)
	m = send(t, m, eventMsg(notification))
	if !strings.Contains(m.View(), "Work session complete!") {
		t.Fatalf("expected completion banner, got:\n%s", m.View())
	}
}

func TestStaleTicksAreIgnored(t *testing.T) {
	m, err := New(Options{Settings: oneMinuteSettings()})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	m, _ = press(t, m, "s")
	stale := m.rt.tickGen
	m, _ = press(t, m, "p")
	if m.rt.ticking {
		t.Fatal("pause should end the tick chain")
	}
	m, _ = press(t, m, "s")
	if m.rt.tickGen == stale {
		t.Fatal("restart should open a new tick chain")
	}

	m = send(t, m, tickMsg{gen: stale})
	if got := m.State().SecondsRemaining; got != 60 {
		t.Fatalf("stale tick changed countdown to %d", got)
	}
	m = send(t, m, tickMsg{gen: m.rt.tickGen})
	if got := m.State().SecondsRemaining; got != 59 {
		t.Fatalf("expected 59 seconds left, got %d", got)
	}
}

func TestSwitchKeys(t *testing.T) {
	m, err := New(Options{Settings: model.DefaultTimerSettings()})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	m, _ = press(t, m, "3")
	if state := m.State(); state.SessionType != model.SessionLongBreak || state.SecondsRemaining != 900 {
		t.Fatalf("unexpected state after switch: %+v", state)
	}

	m, _ = press(t, m, "s")
	m, _ = press(t, m, "1")
	if m.State().SessionType != model.SessionLongBreak {
		t.Fatal("switch while running must be refused")
	}
	if !strings.Contains(m.View(), "before switching") {
		t.Fatalf("expected switch notice, got:\n%s", m.View())
	}

	m, _ = press(t, m, "x")
	m, _ = press(t, m, "2")
	if state := m.State(); state.SessionType != model.SessionShortBreak || state.SecondsRemaining != 300 {
		t.Fatalf("unexpected state after stop and switch: %+v", state)
	}
}

func TestQuitStopsRunningSession(t *testing.T) {
	recorder := newMemoryRecorder()
	m, err := New(Options{Settings: oneMinuteSettings(), Recorder: recorder})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	m, _ = press(t, m, "s")
	m = applyPost(t, m)
	gen := m.rt.tickGen
	for i := 0; i < 45; i++ {
		m = send(t, m, tickMsg{gen: gen})
	}

	m, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !m.Wait(2 * time.Second) {
		t.Fatal("session write did not finish")
	}
	update, ok := recorder.update("session-1")
	if !ok || update.Completed || update.ActualDurationMinutes != 1 {
		t.Fatalf("unexpected record update: %+v (found=%v)", update, ok)
	}
	if m.View() != "" {
		t.Fatal("view should be empty after quitting")
	}
}

func TestBellRespectsVolume(t *testing.T) {
	var out bytes.Buffer
	b := &bell{out: &out}

	if err := b.PlayTone(context.Background(), 0); err != nil {
		t.Fatalf("play tone: %v", err)
	}
	if out.Len() != 0 {
		t.Fatal("muted tone should not ring")
	}
	if err := b.PlayTone(context.Background(), 40); err != nil {
		t.Fatalf("play tone: %v", err)
	}
	if out.String() != "\a" {
		t.Fatalf("expected bell, got %q", out.String())
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[int]string{0: "00:00", 59: "00:59", 1500: "25:00", -3: "00:00"}
	for seconds, want := range cases {
		if got := formatClock(seconds); got != want {
			t.Errorf("formatClock(%d) = %q, want %q", seconds, got, want)
		}
	}
}
