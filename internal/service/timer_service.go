package service

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/model"
	"cortex/workspace/internal/timer"
)

type TimerServiceOptions struct {
	// CallTimeout bounds each recorder call made by a user's engine.
	CallTimeout time.Duration
	// Ticks overrides the tick source of new hosts.
	Ticks timer.TickSource
}

// TimerService owns one live timer host per user. Hosts are created on first
// use with the user's stored settings and live until ctx is cancelled.
type TimerService struct {
	ctx      context.Context
	sessions *PomodoroService
	opts     TimerServiceOptions

	mu    sync.Mutex
	hosts map[string]*timer.Host
	// revision counts settings saves for users without a host.
	revision uint64
}

func NewTimerService(ctx context.Context, sessions *PomodoroService, opts TimerServiceOptions) *TimerService {
	s := &TimerService{
		ctx:      ctx,
		sessions: sessions,
		opts:     opts,
		hosts:    make(map[string]*timer.Host),
	}
	sessions.OnSettingsChanged(s)
	return s
}

func (s *TimerService) State(ctx context.Context, userID string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, nil)
}

func (s *TimerService) Start(ctx context.Context, userID string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, func(h *timer.Host) error { return h.Start(ctx) })
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, func(h *timer.Host) error { return h.Pause(ctx) })
}

func (s *TimerService) Stop(ctx context.Context, userID string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, func(h *timer.Host) error { return h.Stop(ctx) })
}

func (s *TimerService) Reset(ctx context.Context, userID string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, func(h *timer.Host) error { return h.Reset(ctx) })
}

func (s *TimerService) Switch(ctx context.Context, userID, sessionType string) (*timer.State, *apperrors.APIError) {
	return s.apply(ctx, userID, func(h *timer.Host) error {
		return h.SwitchSession(ctx, model.SessionType(sessionType))
	})
}

// Subscribe streams the user's engine events. The returned cancel func must
// be called once the caller stops reading.
func (s *TimerService) Subscribe(ctx context.Context, userID string) (<-chan timer.Event, func(), *apperrors.APIError) {
	host, apiErr := s.host(ctx, userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	events := host.Subscribe(64)
	return events, func() { host.Unsubscribe(events) }, nil
}

// SettingsChanged forwards saved settings to a live engine. Users without a
// running host pick the settings up when one is created.
func (s *TimerService) SettingsChanged(ctx context.Context, userID string, settings model.TimerSettings) error {
	s.mu.Lock()
	host, ok := s.hosts[userID]
	if !ok {
		s.revision++
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return host.UpdateSettings(ctx, settings)
}

func (s *TimerService) apply(ctx context.Context, userID string, op func(h *timer.Host) error) (*timer.State, *apperrors.APIError) {
	host, apiErr := s.host(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if op != nil {
		if err := op(host); err != nil {
			return nil, timerError(err)
		}
	}
	state, err := host.Snapshot(ctx)
	if err != nil {
		return nil, timerError(err)
	}
	return &state, nil
}

func (s *TimerService) host(ctx context.Context, userID string) (*timer.Host, *apperrors.APIError) {
	for {
		s.mu.Lock()
		host, ok := s.liveHostLocked(userID)
		revision := s.revision
		s.mu.Unlock()
		if ok {
			return host, nil
		}
		if s.ctx.Err() != nil {
			return nil, apperrors.ServiceUnavailable("timer service is shutting down")
		}

		settings, apiErr := s.sessions.GetSettings(ctx, userID)
		if apiErr != nil {
			return nil, apiErr
		}

		s.mu.Lock()
		if host, ok := s.liveHostLocked(userID); ok {
			s.mu.Unlock()
			return host, nil
		}
		if s.revision != revision {
			// settings were saved while loading; read them again
			s.mu.Unlock()
			continue
		}
		host, apiErr = s.startHostLocked(userID, settings)
		s.mu.Unlock()
		return host, apiErr
	}
}

func (s *TimerService) liveHostLocked(userID string) (*timer.Host, bool) {
	host, ok := s.hosts[userID]
	if !ok {
		return nil, false
	}
	select {
	case <-host.Done():
		delete(s.hosts, userID)
		return nil, false
	default:
		return host, true
	}
}

func (s *TimerService) startHostLocked(userID string, settings model.TimerSettings) (*timer.Host, *apperrors.APIError) {
	feed := timer.NewFeed()
	opts := timer.HostOptions{
		Recorder:    NewSessionRecorder(s.sessions, userID),
		Notifier:    timer.FeedNotifier{Sink: feed},
		Sound:       timer.FeedSound{Sink: feed},
		Feed:        feed,
		Ticks:       s.opts.Ticks,
		CallTimeout: s.opts.CallTimeout,
	}
	host, err := timer.NewHost(settings, opts)
	if err != nil {
		logging.Warnf("timer: stored settings for %s rejected, using defaults: %v", userID, err)
		host, err = timer.NewHost(model.DefaultTimerSettings(), opts)
		if err != nil {
			return nil, apperrors.Internal("failed to start timer")
		}
	}

	go host.Run(s.ctx)
	s.hosts[userID] = host
	logging.Debugf("timer: host started for %s", userID)
	return host, nil
}

func timerError(err error) *apperrors.APIError {
	switch {
	case errors.Is(err, timer.ErrInvalidTransition):
		return apperrors.Conflict("invalid_transition", err.Error())
	case errors.Is(err, timer.ErrInvalidSessionType):
		return apperrors.BadRequest("invalid_session_type", err.Error())
	case errors.Is(err, timer.ErrInvalidSettings):
		return apperrors.BadRequest("invalid_settings", err.Error())
	case errors.Is(err, timer.ErrHostStopped):
		return apperrors.ServiceUnavailable("timer stopped")
	default:
		return apperrors.Internal("timer request failed")
	}
}

// NewSessionRecorder returns a timer.SessionRecorder that stores userID's
// sessions through sessions.
func NewSessionRecorder(sessions *PomodoroService, userID string) timer.SessionRecorder {
	return sessionRecorder{userID: userID, sessions: sessions}
}

type sessionRecorder struct {
	userID   string
	sessions *PomodoroService
}

func (r sessionRecorder) CreateSession(ctx context.Context, req timer.SessionRequest) (string, error) {
	session, apiErr := r.sessions.CreateSession(ctx, r.userID, CreateSessionInput{
		SessionType:     string(req.SessionType),
		DurationMinutes: req.DurationMinutes,
		Theme:           req.Theme,
	})
	if apiErr != nil {
		return "", apiErr
	}
	return session.ID, nil
}

func (r sessionRecorder) UpdateSession(ctx context.Context, handle string, update timer.SessionUpdate) error {
	completed := update.Completed
	actual := update.ActualDurationMinutes
	_, apiErr := r.sessions.UpdateSession(ctx, r.userID, handle, UpdateSessionInput{
		Completed:             &completed,
		ActualDurationMinutes: &actual,
	})
	if apiErr != nil {
		return apiErr
	}
	return nil
}
