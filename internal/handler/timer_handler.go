package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/service"
	"cortex/workspace/internal/timer"
)

const keepAliveInterval = 15 * time.Second

type TimerHandler struct {
	timerService *service.TimerService
}

type switchSessionRequest struct {
	SessionType string `json:"session_type"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

type timerAction func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError)

func (h *TimerHandler) run(action timerAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		state, apiErr := action(h.timerService, c, userID)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state})
	}
}

func (h *TimerHandler) GetState() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		return s.State(c.Request.Context(), userID)
	})
}

func (h *TimerHandler) Start() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		return s.Start(c.Request.Context(), userID)
	})
}

func (h *TimerHandler) Pause() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		return s.Pause(c.Request.Context(), userID)
	})
}

func (h *TimerHandler) Stop() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		return s.Stop(c.Request.Context(), userID)
	})
}

func (h *TimerHandler) Reset() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		return s.Reset(c.Request.Context(), userID)
	})
}

func (h *TimerHandler) Switch() gin.HandlerFunc {
	return h.run(func(s *service.TimerService, c *gin.Context, userID string) (*timer.State, *apperrors.APIError) {
		var req switchSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.BadRequest("invalid_json", "invalid request body")
		}
		return s.Switch(c.Request.Context(), userID, req.SessionType)
	})
}

// Events streams engine events as server-sent events until the client goes away.
func (h *TimerHandler) Events(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	events, cancel, apiErr := h.timerService.Subscribe(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
