package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/service"
)

type PomodoroHandler struct {
	pomodoroService *service.PomodoroService
}

type createSessionRequest struct {
	SessionType string  `json:"session_type"`
	Duration    int     `json:"duration"`
	Theme       string  `json:"theme"`
	TaskID      *string `json:"task_id"`
}

type updateSessionRequest struct {
	Completed *bool   `json:"completed"`
	Duration  *int    `json:"duration"`
	Theme     *string `json:"theme"`
	Notes     *string `json:"notes"`
}

type batchDeleteRequest struct {
	SessionIDs []string `json:"session_ids"`
}

type linkTaskRequest struct {
	TaskID string `json:"task_id"`
}

func NewPomodoroHandler(pomodoroService *service.PomodoroService) *PomodoroHandler {
	return &PomodoroHandler{pomodoroService: pomodoroService}
}

func (h *PomodoroHandler) CreateSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	session, apiErr := h.pomodoroService.CreateSession(c.Request.Context(), userID, service.CreateSessionInput{
		SessionType:     req.SessionType,
		DurationMinutes: req.Duration,
		Theme:           req.Theme,
		TaskID:          req.TaskID,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *PomodoroHandler) ListSessions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	sessions, apiErr := h.pomodoroService.ListSessions(c.Request.Context(), userID, service.ListSessionsInput{
		Limit:       queryInt(c, "limit", 0),
		Offset:      queryInt(c, "offset", 0),
		SessionType: c.Query("session_type"),
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *PomodoroHandler) UpdateSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	session, apiErr := h.pomodoroService.UpdateSession(c.Request.Context(), userID, c.Param("id"), service.UpdateSessionInput{
		Completed:             req.Completed,
		ActualDurationMinutes: req.Duration,
		Theme:                 req.Theme,
		Notes:                 req.Notes,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *PomodoroHandler) DeleteSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if apiErr := h.pomodoroService.DeleteSession(c.Request.Context(), userID, c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PomodoroHandler) BatchDelete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	deleted, apiErr := h.pomodoroService.BatchDelete(c.Request.Context(), userID, req.SessionIDs)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *PomodoroHandler) LinkTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req linkTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	session, apiErr := h.pomodoroService.LinkTask(c.Request.Context(), userID, c.Param("id"), req.TaskID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *PomodoroHandler) TaskStats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, apiErr := h.pomodoroService.TaskStats(c.Request.Context(), userID, c.Param("taskId"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, apiErr := h.pomodoroService.Stats(c.Request.Context(), userID, queryInt(c, "days", 0))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		writeError(c, apperrors.BadRequest("invalid_format", "format must be json or csv"))
		return
	}

	export, apiErr := h.pomodoroService.Export(c.Request.Context(), userID, queryInt(c, "days", 0))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, export)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteSessionsCSV(&buf, export.Sessions); err != nil {
		writeError(c, apperrors.Internal("failed to encode export"))
		return
	}
	filename := fmt.Sprintf("pomodoro-sessions-%s.csv", export.ExportDate.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *PomodoroHandler) GetSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	settings, apiErr := h.pomodoroService.GetSettings(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *PomodoroHandler) UpdateSettings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var patch service.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeInvalidJSON(c)
		return
	}

	settings, apiErr := h.pomodoroService.UpdateSettings(c.Request.Context(), userID, patch)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
