package timer

import (
	"time"

	"cortex/workspace/internal/model"
)

// EventType defines the kind of engine event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventTick        EventType = "tick"
	EventCompleted   EventType = "completed"
	EventFailure     EventType = "failure"

	// Emitted by collaborators that report through a Feed.
	EventNotification EventType = "notification"
	EventTone         EventType = "tone"
)

// Event is delivered to observers after the engine changes.
type Event struct {
	Type     EventType         `json:"type"`
	State    *State            `json:"state,omitempty"`
	Finished model.SessionType `json:"finished,omitempty"`
	Volume   int               `json:"volume,omitempty"`
	Failure  *Failure          `json:"failure,omitempty"`
	At       time.Time         `json:"at"`
}

// Failure describes a collaborator call that did not succeed.
type Failure struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const (
	OpCreateSession = "create_session"
	OpUpdateSession = "update_session"
	OpNotify        = "notify"
	OpSound         = "sound"
)
