package timer

import (
	"context"
	"fmt"
	"time"

	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/model"
)

// Status is the observable mode of the engine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
)

// State is a copy of the engine's runtime state.
type State struct {
	SessionType           model.SessionType    `json:"session_type"`
	Status                Status               `json:"status"`
	SecondsRemaining      int                  `json:"seconds_remaining"`
	IsRunning             bool                 `json:"is_running"`
	CompletedWorkSessions int                  `json:"completed_work_sessions"`
	ActiveSessionID       string               `json:"active_session_id,omitempty"`
	Settings              model.TimerSettings  `json:"settings"`
	PendingSettings       *model.TimerSettings `json:"pending_settings,omitempty"`
	LastFailure           *Failure             `json:"last_failure,omitempty"`
}

// Options wires the engine to its collaborators. Any collaborator may be nil.
type Options struct {
	Recorder SessionRecorder
	Notifier Notifier
	Sound    SoundPlayer
	Executor Executor
	Events   EventSink

	// CallTimeout bounds each collaborator call. Zero means no deadline.
	CallTimeout time.Duration
	Now         func() time.Time
}

// Engine is the pomodoro countdown and session-type state machine.
//
// An Engine is not safe for concurrent use. Every method, including the
// continuations posted through Options.Executor, must run on one goroutine.
type Engine struct {
	opts Options

	settings    model.TimerSettings
	pending     *model.TimerSettings
	sessionType model.SessionType
	remaining   int
	running     bool

	completedWork   int
	activeSessionID string

	// recordGen identifies the record requested for the current session while
	// its handle is outstanding. awaiting holds the outcome of sessions that
	// ended before their handle arrived; a nil value means still in progress.
	generation uint64
	recordGen  uint64
	awaiting   map[uint64]*SessionUpdate

	lastFailure *Failure
}

// NewEngine returns an idle engine at the start of a work session.
func NewEngine(settings model.TimerSettings, opts Options) (*Engine, error) {
	validated, err := ValidateSettings(settings)
	if err != nil {
		return nil, err
	}
	if opts.Executor == nil {
		opts.Executor = InlineExecutor{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		opts:        opts,
		settings:    validated,
		sessionType: model.SessionWork,
		remaining:   validated.DurationSeconds(model.SessionWork),
		awaiting:    make(map[uint64]*SessionUpdate),
	}, nil
}

// NextSessionAfterWork picks the break that follows the completed-th work session.
func NextSessionAfterWork(completed, longBreakInterval int) model.SessionType {
	if longBreakInterval > 0 && completed%longBreakInterval == 0 {
		return model.SessionLongBreak
	}
	return model.SessionShortBreak
}

// Running reports whether the countdown is decrementing.
func (e *Engine) Running() bool {
	return e.running
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	status := StatusIdle
	if e.running {
		status = StatusRunning
	}
	state := State{
		SessionType:           e.sessionType,
		Status:                status,
		SecondsRemaining:      e.remaining,
		IsRunning:             e.running,
		CompletedWorkSessions: e.completedWork,
		ActiveSessionID:       e.activeSessionID,
		Settings:              e.settings,
	}
	if e.pending != nil {
		pending := *e.pending
		state.PendingSettings = &pending
	}
	if e.lastFailure != nil {
		failure := *e.lastFailure
		state.LastFailure = &failure
	}
	return state
}

// Start resumes or begins the countdown. It is a no-op while running.
func (e *Engine) Start() {
	if e.running {
		return
	}
	e.running = true
	if e.activeSessionID == "" && e.recordGen == 0 {
		e.requestRecord()
	}
	e.emit(EventStateChange)
}

// Pause freezes the countdown without resetting it. It is a no-op while idle.
func (e *Engine) Pause() {
	if !e.running {
		return
	}
	e.running = false
	e.emit(EventStateChange)
}

// Stop ends the current session as not completed and rewinds the countdown.
func (e *Engine) Stop() {
	full := e.settings.DurationSeconds(e.sessionType)
	elapsed := full - e.remaining
	if elapsed < 0 {
		elapsed = 0
	}

	e.running = false
	e.finishRecord(SessionUpdate{
		Completed:             false,
		ActualDurationMinutes: (elapsed + 30) / 60,
	})
	e.applyPending()
	e.remaining = e.settings.DurationSeconds(e.sessionType)
	e.emit(EventStateChange)
}

// Reset is Stop; it is always safe to call.
func (e *Engine) Reset() {
	e.Stop()
}

// Tick advances a running countdown by one second.
func (e *Engine) Tick() {
	if !e.running {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.emit(EventTick)
		return
	}
	e.remaining = 0
	e.complete()
}

// SwitchSession selects another session type while idle.
func (e *Engine) SwitchSession(target model.SessionType) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSessionType, target)
	}
	if e.running {
		return fmt.Errorf("%w: cannot switch session while running", ErrInvalidTransition)
	}

	e.abandonRecord()
	e.applyPending()
	e.sessionType = target
	e.remaining = e.settings.DurationSeconds(target)
	e.emit(EventStateChange)
	return nil
}

// UpdateSettings replaces the settings. While running the change waits
// until the current session ends.
func (e *Engine) UpdateSettings(settings model.TimerSettings) error {
	validated, err := ValidateSettings(settings)
	if err != nil {
		return err
	}

	if e.running {
		e.pending = &validated
		e.emit(EventStateChange)
		return nil
	}

	e.settings = validated
	e.pending = nil
	e.remaining = e.settings.DurationSeconds(e.sessionType)
	e.emit(EventStateChange)
	return nil
}

func (e *Engine) complete() {
	finished := e.sessionType
	nominal := e.settings.DurationMinutes(finished)
	e.running = false

	e.finishRecord(SessionUpdate{Completed: true, ActualDurationMinutes: nominal})
	e.applyPending()

	next := model.SessionWork
	if finished == model.SessionWork {
		e.completedWork++
		next = NextSessionAfterWork(e.completedWork, e.settings.LongBreakInterval)
	}

	if e.settings.SoundEnabled && e.opts.Sound != nil {
		volume := e.settings.SoundVolume
		sound := e.opts.Sound
		e.dispatch(OpSound, func(ctx context.Context) error {
			return sound.PlayTone(ctx, volume)
		}, nil)
	}
	if e.opts.Notifier != nil {
		notifier := e.opts.Notifier
		e.dispatch(OpNotify, func(ctx context.Context) error {
			return notifier.NotifyCompletion(ctx, finished)
		}, nil)
	}

	e.sessionType = next
	e.remaining = e.settings.DurationSeconds(next)
	logging.Debugf("timer: %s session completed, next %s", finished, next)

	if e.opts.Events != nil {
		event := e.event(EventCompleted)
		event.Finished = finished
		e.opts.Events.Publish(event)
	}

	if e.settings.AutoStartNext {
		e.running = true
		e.requestRecord()
	}
	e.emit(EventStateChange)
}

func (e *Engine) applyPending() {
	if e.pending == nil {
		return
	}
	e.settings = *e.pending
	e.pending = nil
}

func (e *Engine) requestRecord() {
	if e.opts.Recorder == nil {
		return
	}
	e.generation++
	gen := e.generation
	e.recordGen = gen
	e.awaiting[gen] = nil

	recorder := e.opts.Recorder
	req := SessionRequest{
		SessionType:     e.sessionType,
		DurationMinutes: e.settings.DurationMinutes(e.sessionType),
		Theme:           e.settings.Theme,
	}
	var handle string
	e.dispatch(OpCreateSession, func(ctx context.Context) error {
		created, err := recorder.CreateSession(ctx, req)
		handle = created
		return err
	}, func(err error) {
		e.recordCreated(gen, handle, err)
	})
}

func (e *Engine) recordCreated(gen uint64, handle string, err error) {
	outcome, ok := e.awaiting[gen]
	delete(e.awaiting, gen)
	if err != nil || handle == "" {
		if gen == e.recordGen {
			e.recordGen = 0
		}
		return
	}
	if !ok {
		return
	}
	if outcome != nil {
		e.dispatchUpdate(handle, *outcome)
		return
	}
	if gen == e.recordGen {
		e.activeSessionID = handle
		e.emit(EventStateChange)
	}
}

func (e *Engine) finishRecord(update SessionUpdate) {
	switch {
	case e.activeSessionID != "":
		e.dispatchUpdate(e.activeSessionID, update)
	case e.recordGen != 0:
		if _, ok := e.awaiting[e.recordGen]; ok {
			e.awaiting[e.recordGen] = &update
		}
	}
	e.activeSessionID = ""
	e.recordGen = 0
}

func (e *Engine) abandonRecord() {
	if e.recordGen != 0 {
		delete(e.awaiting, e.recordGen)
	}
	e.activeSessionID = ""
	e.recordGen = 0
}

func (e *Engine) dispatchUpdate(handle string, update SessionUpdate) {
	if e.opts.Recorder == nil {
		return
	}
	recorder := e.opts.Recorder
	e.dispatch(OpUpdateSession, func(ctx context.Context) error {
		return recorder.UpdateSession(ctx, handle, update)
	}, nil)
}

// dispatch runs call through the executor and brings its result back onto
// the engine's context. A panicking collaborator is reported as a failure.
func (e *Engine) dispatch(op string, call func(ctx context.Context) error, after func(err error)) {
	executor := e.opts.Executor
	timeout := e.opts.CallTimeout
	executor.Go(func() {
		err := safeCall(timeout, call)
		executor.Post(func() {
			if err != nil {
				e.recordFailure(op, err)
			} else if op == OpCreateSession || op == OpUpdateSession {
				e.lastFailure = nil
			}
			if after != nil {
				after(err)
			}
		})
	})
}

func safeCall(timeout time.Duration, call func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collaborator panic: %v", r)
		}
	}()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return call(ctx)
}

func (e *Engine) recordFailure(op string, err error) {
	logging.Warnf("timer: %s failed: %v", op, err)
	e.lastFailure = &Failure{
		Op:      op,
		Message: err.Error(),
		At:      e.opts.Now(),
	}
	if e.opts.Events != nil {
		event := e.event(EventFailure)
		event.Failure = e.lastFailure
		e.opts.Events.Publish(event)
	}
}

func (e *Engine) emit(eventType EventType) {
	if e.opts.Events == nil {
		return
	}
	e.opts.Events.Publish(e.event(eventType))
}

func (e *Engine) event(eventType EventType) Event {
	state := e.Snapshot()
	return Event{
		Type:  eventType,
		State: &state,
		At:    e.opts.Now(),
	}
}
