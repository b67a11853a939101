package timer

import (
	"context"

	"cortex/workspace/internal/model"
)

// SessionRequest describes the record to create when a session starts.
type SessionRequest struct {
	SessionType     model.SessionType
	DurationMinutes int
	Theme           string
}

// SessionUpdate is the outcome written to a record when its session ends.
type SessionUpdate struct {
	Completed             bool
	ActualDurationMinutes int
}

// SessionRecorder persists session records outside the engine.
type SessionRecorder interface {
	CreateSession(ctx context.Context, req SessionRequest) (string, error)
	UpdateSession(ctx context.Context, handle string, update SessionUpdate) error
}

// Notifier announces that a session of the given type finished.
type Notifier interface {
	NotifyCompletion(ctx context.Context, finished model.SessionType) error
}

// SoundPlayer plays the completion tone at a volume in [0,100].
type SoundPlayer interface {
	PlayTone(ctx context.Context, volume int) error
}

// SettingsStore loads and saves timer settings for a host.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (model.TimerSettings, error)
	SaveSettings(ctx context.Context, settings model.TimerSettings) error
}

// Executor decouples collaborator calls from the engine's execution context.
// Go runs task somewhere that may block; Post schedules apply back onto the
// context that owns the engine.
type Executor interface {
	Go(task func())
	Post(apply func())
}

// EventSink receives engine events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// InlineExecutor runs tasks and continuations immediately on the caller's
// goroutine. It suits tests and collaborators that never block.
type InlineExecutor struct{}

func (InlineExecutor) Go(task func())    { task() }
func (InlineExecutor) Post(apply func()) { apply() }
