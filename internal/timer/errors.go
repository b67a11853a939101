package timer

import (
	"errors"
	"fmt"

	"cortex/workspace/internal/model"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid timer transition")

	// ErrInvalidSettings is returned when settings fail validation; prior settings are kept.
	ErrInvalidSettings = errors.New("invalid timer settings")

	// ErrInvalidSessionType is returned for session types outside work/short_break/long_break.
	ErrInvalidSessionType = errors.New("invalid session type")
)

// ValidateSettings checks settings and fills an empty theme with the default.
func ValidateSettings(s model.TimerSettings) (model.TimerSettings, error) {
	if s.WorkDurationMinutes <= 0 || s.WorkDurationMinutes > model.MaxSessionMinutes {
		return s, fmt.Errorf("%w: work duration must be between 1 and %d minutes", ErrInvalidSettings, model.MaxSessionMinutes)
	}
	if s.ShortBreakMinutes <= 0 || s.ShortBreakMinutes > model.MaxSessionMinutes {
		return s, fmt.Errorf("%w: short break must be between 1 and %d minutes", ErrInvalidSettings, model.MaxSessionMinutes)
	}
	if s.LongBreakMinutes <= 0 || s.LongBreakMinutes > model.MaxSessionMinutes {
		return s, fmt.Errorf("%w: long break must be between 1 and %d minutes", ErrInvalidSettings, model.MaxSessionMinutes)
	}
	if s.LongBreakInterval <= 0 {
		return s, fmt.Errorf("%w: long break interval must be positive", ErrInvalidSettings)
	}
	if s.SoundVolume < 0 || s.SoundVolume > 100 {
		return s, fmt.Errorf("%w: sound volume must be between 0 and 100", ErrInvalidSettings)
	}
	if s.Theme == "" {
		s.Theme = model.DefaultTheme
	}
	if !model.IsKnownTheme(s.Theme) {
		return s, fmt.Errorf("%w: unknown theme %q", ErrInvalidSettings, s.Theme)
	}
	return s, nil
}
