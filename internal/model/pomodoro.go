package model

import "time"

// SessionType is the kind of countdown a pomodoro session runs.
type SessionType string

const (
	SessionWork       SessionType = "work"
	SessionShortBreak SessionType = "short_break"
	SessionLongBreak  SessionType = "long_break"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	return t == SessionWork || t == SessionShortBreak || t == SessionLongBreak
}

// Label is the human readable name used in notifications.
func (t SessionType) Label() string {
	switch t {
	case SessionShortBreak:
		return "Short break"
	case SessionLongBreak:
		return "Long break"
	default:
		return "Work"
	}
}

const (
	DefaultWorkDurationMinutes = 25
	DefaultShortBreakMinutes   = 5
	DefaultLongBreakMinutes    = 15
	DefaultLongBreakInterval   = 4
	DefaultSoundVolume         = 50
	DefaultTheme               = "classic"

	// MaxSessionMinutes caps every session duration.
	MaxSessionMinutes = 120
)

// Themes lists the timer colour themes a session can be tagged with.
var Themes = []string{"classic", "forest", "ocean", "sunset", "lavender", "midnight"}

// IsKnownTheme reports whether theme is one of Themes.
func IsKnownTheme(theme string) bool {
	for _, known := range Themes {
		if known == theme {
			return true
		}
	}
	return false
}

// TimerSettings configures durations and completion side effects of the timer.
type TimerSettings struct {
	WorkDurationMinutes int    `json:"work_duration_minutes" yaml:"work_duration_minutes"`
	ShortBreakMinutes   int    `json:"short_break_minutes" yaml:"short_break_minutes"`
	LongBreakMinutes    int    `json:"long_break_minutes" yaml:"long_break_minutes"`
	LongBreakInterval   int    `json:"long_break_interval" yaml:"long_break_interval"`
	AutoStartNext       bool   `json:"auto_start_next" yaml:"auto_start_next"`
	SoundEnabled        bool   `json:"sound_enabled" yaml:"sound_enabled"`
	SoundVolume         int    `json:"sound_volume" yaml:"sound_volume"`
	Theme               string `json:"theme" yaml:"theme"`
}

// DefaultTimerSettings returns the settings a new user starts with.
func DefaultTimerSettings() TimerSettings {
	return TimerSettings{
		WorkDurationMinutes: DefaultWorkDurationMinutes,
		ShortBreakMinutes:   DefaultShortBreakMinutes,
		LongBreakMinutes:    DefaultLongBreakMinutes,
		LongBreakInterval:   DefaultLongBreakInterval,
		AutoStartNext:       false,
		SoundEnabled:        true,
		SoundVolume:         DefaultSoundVolume,
		Theme:               DefaultTheme,
	}
}

// DurationMinutes returns the nominal length of a session of type t.
func (s TimerSettings) DurationMinutes(t SessionType) int {
	switch t {
	case SessionShortBreak:
		return s.ShortBreakMinutes
	case SessionLongBreak:
		return s.LongBreakMinutes
	default:
		return s.WorkDurationMinutes
	}
}

// DurationSeconds returns the nominal length of a session of type t in seconds.
func (s TimerSettings) DurationSeconds(t SessionType) int {
	return s.DurationMinutes(t) * 60
}

// PomodoroSession is a persisted record of one countdown.
type PomodoroSession struct {
	ID                    string      `json:"id"`
	UserID                string      `json:"user_id"`
	SessionType           SessionType `json:"session_type"`
	DurationMinutes       int         `json:"duration"`
	ActualDurationMinutes int         `json:"actual_duration"`
	Completed             bool        `json:"completed"`
	Theme                 string      `json:"theme"`
	TaskID                *string     `json:"task_id,omitempty"`
	Notes                 *string     `json:"notes,omitempty"`
	StartedAt             time.Time   `json:"started_at"`
	CompletedAt           *time.Time  `json:"completed_at,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	SessionType SessionType
	From        *time.Time
	To          *time.Time
	TaskID      string
	Limit       int
	Offset      int
}

// TaskStats summarises the sessions linked to one task.
type TaskStats struct {
	TaskID            string `json:"task_id"`
	CompletedSessions int    `json:"completed_sessions"`
	TotalMinutes      int    `json:"total_minutes"`
}
