package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/model"
	"cortex/workspace/internal/repository"
	"cortex/workspace/internal/timer"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 200
	defaultStatsDays  = 7
	defaultExportDays = 30
	maxPeriodDays     = 365
	dateLayout        = "2006-01-02"
)

// SettingsListener is told about settings that were persisted for a user.
type SettingsListener interface {
	SettingsChanged(ctx context.Context, userID string, settings model.TimerSettings) error
}

type PomodoroService struct {
	repo         *repository.PomodoroRepository
	settingsRepo *repository.SettingsRepository
	listener     SettingsListener
	now          func() time.Time
}

func NewPomodoroService(repo *repository.PomodoroRepository, settingsRepo *repository.SettingsRepository) *PomodoroService {
	return &PomodoroService{
		repo:         repo,
		settingsRepo: settingsRepo,
		now:          time.Now,
	}
}

// OnSettingsChanged registers the listener notified by UpdateSettings.
func (s *PomodoroService) OnSettingsChanged(listener SettingsListener) {
	s.listener = listener
}

type CreateSessionInput struct {
	SessionType     string
	DurationMinutes int
	Theme           string
	TaskID          *string
}

type UpdateSessionInput struct {
	Completed             *bool
	ActualDurationMinutes *int
	Theme                 *string
	Notes                 *string
}

type ListSessionsInput struct {
	Limit       int
	Offset      int
	SessionType string
	DateFrom    string
	DateTo      string
}

// SettingsPatch holds the fields of a partial settings update.
type SettingsPatch struct {
	WorkDurationMinutes *int    `json:"work_duration_minutes"`
	ShortBreakMinutes   *int    `json:"short_break_minutes"`
	LongBreakMinutes    *int    `json:"long_break_minutes"`
	LongBreakInterval   *int    `json:"long_break_interval"`
	AutoStartNext       *bool   `json:"auto_start_next"`
	SoundEnabled        *bool   `json:"sound_enabled"`
	SoundVolume         *int    `json:"sound_volume"`
	Theme               *string `json:"theme"`
}

// Apply returns base with every non-nil field of p applied.
func (p SettingsPatch) Apply(base model.TimerSettings) model.TimerSettings {
	if p.WorkDurationMinutes != nil {
		base.WorkDurationMinutes = *p.WorkDurationMinutes
	}
	if p.ShortBreakMinutes != nil {
		base.ShortBreakMinutes = *p.ShortBreakMinutes
	}
	if p.LongBreakMinutes != nil {
		base.LongBreakMinutes = *p.LongBreakMinutes
	}
	if p.LongBreakInterval != nil {
		base.LongBreakInterval = *p.LongBreakInterval
	}
	if p.AutoStartNext != nil {
		base.AutoStartNext = *p.AutoStartNext
	}
	if p.SoundEnabled != nil {
		base.SoundEnabled = *p.SoundEnabled
	}
	if p.SoundVolume != nil {
		base.SoundVolume = *p.SoundVolume
	}
	if p.Theme != nil {
		base.Theme = *p.Theme
	}
	return base
}

func (s *PomodoroService) CreateSession(ctx context.Context, userID string, input CreateSessionInput) (*model.PomodoroSession, *apperrors.APIError) {
	sessionType := model.SessionType(input.SessionType)
	if !sessionType.Valid() {
		return nil, apperrors.BadRequest("invalid_session_type", "session_type must be work, short_break or long_break")
	}
	if input.DurationMinutes < 1 || input.DurationMinutes > model.MaxSessionMinutes {
		return nil, apperrors.BadRequest("invalid_duration", fmt.Sprintf("duration must be between 1 and %d minutes", model.MaxSessionMinutes))
	}
	theme := strings.TrimSpace(input.Theme)
	if theme == "" {
		theme = model.DefaultTheme
	}
	if !model.IsKnownTheme(theme) {
		return nil, apperrors.BadRequest("invalid_theme", "unknown theme")
	}

	now := s.now().UTC()
	session := model.PomodoroSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		SessionType:     sessionType,
		DurationMinutes: input.DurationMinutes,
		Theme:           theme,
		TaskID:          trimmedOrNil(input.TaskID),
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateSession(ctx, &session); err != nil {
		logging.Errorf("pomodoro: create session for %s: %v", userID, err)
		return nil, apperrors.Internal("failed to create session")
	}
	return &session, nil
}

func (s *PomodoroService) ListSessions(ctx context.Context, userID string, input ListSessionsInput) ([]model.PomodoroSession, *apperrors.APIError) {
	filter := model.SessionFilter{
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if input.SessionType != "" {
		sessionType := model.SessionType(input.SessionType)
		if !sessionType.Valid() {
			return nil, apperrors.BadRequest("invalid_session_type", "session_type must be work, short_break or long_break")
		}
		filter.SessionType = sessionType
	}
	if input.DateFrom != "" {
		from, err := time.Parse(dateLayout, input.DateFrom)
		if err != nil {
			return nil, apperrors.BadRequest("invalid_date", "date_from must be YYYY-MM-DD")
		}
		filter.From = &from
	}
	if input.DateTo != "" {
		to, err := time.Parse(dateLayout, input.DateTo)
		if err != nil {
			return nil, apperrors.BadRequest("invalid_date", "date_to must be YYYY-MM-DD")
		}
		// inclusive
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}

	sessions, err := s.repo.ListSessions(ctx, userID, filter)
	if err != nil {
		logging.Errorf("pomodoro: list sessions for %s: %v", userID, err)
		return nil, apperrors.Internal("failed to list sessions")
	}
	return sessions, nil
}

func (s *PomodoroService) UpdateSession(ctx context.Context, userID, sessionID string, input UpdateSessionInput) (*model.PomodoroSession, *apperrors.APIError) {
	session, apiErr := s.getSession(ctx, userID, sessionID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.now().UTC()
	if input.Completed != nil {
		session.Completed = *input.Completed
		if session.Completed {
			session.CompletedAt = &now
		} else {
			session.CompletedAt = nil
		}
	}
	if input.ActualDurationMinutes != nil {
		if *input.ActualDurationMinutes < 0 {
			return nil, apperrors.BadRequest("invalid_duration", "duration must not be negative")
		}
		session.ActualDurationMinutes = *input.ActualDurationMinutes
	}
	if input.Theme != nil {
		if !model.IsKnownTheme(*input.Theme) {
			return nil, apperrors.BadRequest("invalid_theme", "unknown theme")
		}
		session.Theme = *input.Theme
	}
	if input.Notes != nil {
		session.Notes = input.Notes
	}
	session.UpdatedAt = now

	if err := s.repo.UpdateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("session_not_found", "session not found")
		}
		logging.Errorf("pomodoro: update session %s: %v", sessionID, err)
		return nil, apperrors.Internal("failed to update session")
	}
	return session, nil
}

func (s *PomodoroService) DeleteSession(ctx context.Context, userID, sessionID string) *apperrors.APIError {
	if err := s.repo.DeleteSession(ctx, userID, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("session_not_found", "session not found")
		}
		logging.Errorf("pomodoro: delete session %s: %v", sessionID, err)
		return apperrors.Internal("failed to delete session")
	}
	return nil
}

func (s *PomodoroService) BatchDelete(ctx context.Context, userID string, sessionIDs []string) (int64, *apperrors.APIError) {
	if len(sessionIDs) == 0 {
		return 0, apperrors.BadRequest("empty_session_ids", "session_ids must not be empty")
	}
	deleted, err := s.repo.DeleteSessions(ctx, userID, sessionIDs)
	if err != nil {
		logging.Errorf("pomodoro: batch delete for %s: %v", userID, err)
		return 0, apperrors.Internal("failed to delete sessions")
	}
	return deleted, nil
}

func (s *PomodoroService) LinkTask(ctx context.Context, userID, sessionID, taskID string) (*model.PomodoroSession, *apperrors.APIError) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, apperrors.BadRequest("invalid_task_id", "task_id is required")
	}
	session, apiErr := s.getSession(ctx, userID, sessionID)
	if apiErr != nil {
		return nil, apiErr
	}

	session.TaskID = &taskID
	session.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		logging.Errorf("pomodoro: link task to %s: %v", sessionID, err)
		return nil, apperrors.Internal("failed to link task")
	}
	return session, nil
}

func (s *PomodoroService) TaskStats(ctx context.Context, userID, taskID string) (*model.TaskStats, *apperrors.APIError) {
	stats, err := s.repo.TaskStats(ctx, userID, taskID)
	if err != nil {
		logging.Errorf("pomodoro: task stats for %s: %v", taskID, err)
		return nil, apperrors.Internal("failed to load task stats")
	}
	return stats, nil
}

type DailyStat struct {
	Date         string `json:"date"`
	WorkSessions int    `json:"work_sessions"`
	FocusMinutes int    `json:"focus_minutes"`
}

type Stats struct {
	PeriodDays            int            `json:"period_days"`
	TotalSessions         int            `json:"total_sessions"`
	CompletedSessions     int            `json:"completed_sessions"`
	CompletedWorkSessions int            `json:"completed_work_sessions"`
	CompletionRate        float64        `json:"completion_rate"`
	TotalFocusMinutes     int            `json:"total_focus_minutes"`
	AverageDailySessions  float64        `json:"average_daily_sessions"`
	TodaySessions         int            `json:"today_sessions"`
	TodayFocusMinutes     int            `json:"today_focus_minutes"`
	Daily                 []DailyStat    `json:"daily"`
	ThemeUsage            map[string]int `json:"theme_usage"`
}

// Stats aggregates the sessions started in the last days calendar days (UTC),
// today included.
func (s *PomodoroService) Stats(ctx context.Context, userID string, days int) (*Stats, *apperrors.APIError) {
	days = clampDays(days, defaultStatsDays)
	sessions, from, apiErr := s.sessionsInWindow(ctx, userID, days)
	if apiErr != nil {
		return nil, apiErr
	}
	return summarize(sessions, from, days), nil
}

func summarize(sessions []model.PomodoroSession, from time.Time, days int) *Stats {
	stats := &Stats{
		PeriodDays: days,
		Daily:      make([]DailyStat, days),
		ThemeUsage: make(map[string]int),
	}
	for i := range stats.Daily {
		stats.Daily[i].Date = from.AddDate(0, 0, i).Format(dateLayout)
	}
	today := stats.Daily[days-1].Date

	for _, session := range sessions {
		stats.TotalSessions++
		stats.ThemeUsage[session.Theme]++
		if !session.Completed {
			continue
		}
		stats.CompletedSessions++
		if session.SessionType != model.SessionWork {
			continue
		}

		stats.CompletedWorkSessions++
		stats.TotalFocusMinutes += session.ActualDurationMinutes
		day := int(session.StartedAt.UTC().Sub(from) / (24 * time.Hour))
		if day >= 0 && day < days {
			stats.Daily[day].WorkSessions++
			stats.Daily[day].FocusMinutes += session.ActualDurationMinutes
		}
		if session.StartedAt.UTC().Format(dateLayout) == today {
			stats.TodaySessions++
			stats.TodayFocusMinutes += session.ActualDurationMinutes
		}
	}

	if stats.TotalSessions > 0 {
		stats.CompletionRate = roundTenth(float64(stats.CompletedSessions) / float64(stats.TotalSessions) * 100)
	}
	stats.AverageDailySessions = roundTenth(float64(stats.CompletedWorkSessions) / float64(days))
	return stats
}

type Export struct {
	ExportDate    time.Time               `json:"export_date"`
	PeriodDays    int                     `json:"period_days"`
	TotalSessions int                     `json:"total_sessions"`
	Sessions      []model.PomodoroSession `json:"sessions"`
}

func (s *PomodoroService) Export(ctx context.Context, userID string, days int) (*Export, *apperrors.APIError) {
	days = clampDays(days, defaultExportDays)
	sessions, _, apiErr := s.sessionsInWindow(ctx, userID, days)
	if apiErr != nil {
		return nil, apiErr
	}
	return &Export{
		ExportDate:    s.now().UTC(),
		PeriodDays:    days,
		TotalSessions: len(sessions),
		Sessions:      sessions,
	}, nil
}

// GetSettings returns the stored settings, or the defaults for users that
// never saved any.
func (s *PomodoroService) GetSettings(ctx context.Context, userID string) (model.TimerSettings, *apperrors.APIError) {
	settings, err := s.settingsRepo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.DefaultTimerSettings(), nil
	}
	if err != nil {
		logging.Errorf("pomodoro: load settings for %s: %v", userID, err)
		return model.TimerSettings{}, apperrors.Internal("failed to load settings")
	}
	return *settings, nil
}

// UpdateSettings merges patch into the stored settings, validates and saves
// the result, then forwards it to the settings listener.
func (s *PomodoroService) UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (model.TimerSettings, *apperrors.APIError) {
	current, apiErr := s.GetSettings(ctx, userID)
	if apiErr != nil {
		return model.TimerSettings{}, apiErr
	}

	merged, err := timer.ValidateSettings(patch.Apply(current))
	if err != nil {
		return model.TimerSettings{}, apperrors.BadRequest("invalid_settings", err.Error())
	}
	if err := s.settingsRepo.Upsert(ctx, userID, merged); err != nil {
		logging.Errorf("pomodoro: save settings for %s: %v", userID, err)
		return model.TimerSettings{}, apperrors.Internal("failed to save settings")
	}

	if s.listener != nil {
		if err := s.listener.SettingsChanged(ctx, userID, merged); err != nil {
			logging.Warnf("pomodoro: forward settings for %s: %v", userID, err)
		}
	}
	return merged, nil
}

func (s *PomodoroService) getSession(ctx context.Context, userID, sessionID string) (*model.PomodoroSession, *apperrors.APIError) {
	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		logging.Errorf("pomodoro: get session %s: %v", sessionID, err)
		return nil, apperrors.Internal("failed to load session")
	}
	return session, nil
}

func (s *PomodoroService) sessionsInWindow(ctx context.Context, userID string, days int) ([]model.PomodoroSession, time.Time, *apperrors.APIError) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))

	sessions, err := s.repo.ListSessions(ctx, userID, model.SessionFilter{From: &from})
	if err != nil {
		logging.Errorf("pomodoro: load sessions for %s: %v", userID, err)
		return nil, from, apperrors.Internal("failed to load sessions")
	}
	return sessions, from, nil
}

func clampDays(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	if days > maxPeriodDays {
		return maxPeriodDays
	}
	return days
}

func roundTenth(value float64) float64 {
	return math.Round(value*10) / 10
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
