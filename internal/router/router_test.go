package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"cortex/workspace/internal/db"
	"cortex/workspace/internal/handler"
	"cortex/workspace/internal/repository"
	"cortex/workspace/internal/router"
	"cortex/workspace/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type sessionView struct {
	ID             string  `json:"id"`
	SessionType    string  `json:"session_type"`
	Duration       int     `json:"duration"`
	ActualDuration int     `json:"actual_duration"`
	Completed      bool    `json:"completed"`
	Theme          string  `json:"theme"`
	TaskID         *string `json:"task_id"`
}

type sessionEnvelope struct {
	Session sessionView `json:"session"`
}

type sessionsEnvelope struct {
	Sessions []sessionView `json:"sessions"`
}

type stateEnvelope struct {
	State struct {
		SessionType      string `json:"session_type"`
		Status           string `json:"status"`
		SecondsRemaining int    `json:"seconds_remaining"`
		IsRunning        bool   `json:"is_running"`
		Settings         struct {
			WorkDurationMinutes int `json:"work_duration_minutes"`
		} `json:"settings"`
	} `json:"state"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestSessionRecordsAreIsolatedPerUser(t *testing.T) {
	engine := setupTestEngine(t)

	user1 := registerUser(t, engine, "user1@example.com", "123456")
	user2 := registerUser(t, engine, "user2@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/sessions", user1.Token, map[string]interface{}{
		"session_type": "work",
		"duration":     25,
		"theme":        "forest",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d: %s", status, raw)
	}
	var created sessionEnvelope
	mustUnmarshal(t, raw, &created)
	if created.Session.Completed || created.Session.Theme != "forest" {
		t.Fatalf("unexpected session: %+v", created.Session)
	}

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/pomodoro/sessions/"+created.Session.ID, user2.Token, map[string]interface{}{
		"completed": true,
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's session, got %d: %s", status, raw)
	}

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/pomodoro/sessions/"+created.Session.ID, user1.Token, map[string]interface{}{
		"completed": true,
		"duration":  24,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d: %s", status, raw)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/sessions/"+created.Session.ID+"/link-task", user1.Token, map[string]string{
		"task_id": "task-42",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on link task, got %d: %s", status, raw)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/task-stats/task-42", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on task stats, got %d: %s", status, raw)
	}
	var taskStats struct {
		CompletedSessions int `json:"completed_sessions"`
		TotalMinutes      int `json:"total_minutes"`
	}
	mustUnmarshal(t, raw, &taskStats)
	if taskStats.CompletedSessions != 1 || taskStats.TotalMinutes != 24 {
		t.Fatalf("unexpected task stats: %+v", taskStats)
	}

	if sessions := listSessions(t, engine, user2.Token, ""); len(sessions) != 0 {
		t.Fatalf("expected no sessions for user2, got %d", len(sessions))
	}
	sessions := listSessions(t, engine, user1.Token, "?session_type=work&limit=10")
	if len(sessions) != 1 || !sessions[0].Completed || sessions[0].ActualDuration != 24 {
		t.Fatalf("unexpected sessions for user1: %+v", sessions)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/batch/delete", user1.Token, map[string][]string{
		"session_ids": {},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d: %s", status, raw)
	}

	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/pomodoro/sessions/"+created.Session.ID, user1.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}
	if sessions := listSessions(t, engine, user1.Token, ""); len(sessions) != 0 {
		t.Fatalf("expected session deleted, got %d", len(sessions))
	}
}

func TestCreateSessionValidation(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "validate@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/sessions", user.Token, map[string]interface{}{
		"session_type": "work",
		"duration":     500,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	var errResp apiErrorEnvelope
	mustUnmarshal(t, raw, &errResp)
	if errResp.Error.Code != "invalid_duration" {
		t.Fatalf("expected invalid_duration, got %s", errResp.Error.Code)
	}

	status, _ = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/sessions", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestSettingsAndLiveTimer(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "timer@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPut, "/api/pomodoro/settings", user.Token, map[string]interface{}{
		"long_break_interval": 0,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid settings, got %d: %s", status, raw)
	}
	var errResp apiErrorEnvelope
	mustUnmarshal(t, raw, &errResp)
	if errResp.Error.Code != "invalid_settings" {
		t.Fatalf("expected invalid_settings, got %s", errResp.Error.Code)
	}

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/pomodoro/settings", user.Token, map[string]interface{}{
		"work_duration_minutes": 30,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on settings update, got %d: %s", status, raw)
	}

	state := timerCall(t, engine, http.MethodGet, "/api/timer/state", user.Token, nil)
	if state.State.SecondsRemaining != 1800 || state.State.Status != "idle" {
		t.Fatalf("expected idle engine with 1800s, got %+v", state.State)
	}

	state = timerCall(t, engine, http.MethodPost, "/api/timer/start", user.Token, nil)
	if !state.State.IsRunning || state.State.Status != "running" {
		t.Fatalf("expected running engine, got %+v", state.State)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/timer/switch", user.Token, map[string]string{
		"session_type": "short_break",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 switching while running, got %d: %s", status, raw)
	}
	mustUnmarshal(t, raw, &errResp)
	if errResp.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", errResp.Error.Code)
	}

	state = timerCall(t, engine, http.MethodPost, "/api/timer/pause", user.Token, nil)
	if state.State.IsRunning {
		t.Fatal("expected paused engine")
	}

	state = timerCall(t, engine, http.MethodPost, "/api/timer/switch", user.Token, map[string]string{
		"session_type": "long_break",
	})
	if state.State.SessionType != "long_break" || state.State.SecondsRemaining != 900 {
		t.Fatalf("unexpected state after switch: %+v", state.State)
	}

	state = timerCall(t, engine, http.MethodPost, "/api/timer/reset", user.Token, nil)
	if state.State.SecondsRemaining != 900 {
		t.Fatalf("unexpected state after reset: %+v", state.State)
	}
}

func TestExportFormats(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "export@example.com", "123456")

	for _, sessionType := range []string{"work", "short_break"} {
		status, raw := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/sessions", user.Token, map[string]interface{}{
			"session_type": sessionType,
			"duration":     5,
		})
		if status != http.StatusCreated {
			t.Fatalf("create %s: %d %s", sessionType, status, raw)
		}
	}

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/export?days=7", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on json export, got %d", status)
	}
	var envelope struct {
		PeriodDays    int           `json:"period_days"`
		TotalSessions int           `json:"total_sessions"`
		Sessions      []sessionView `json:"sessions"`
	}
	mustUnmarshal(t, raw, &envelope)
	if envelope.PeriodDays != 7 || envelope.TotalSessions != 2 || len(envelope.Sessions) != 2 {
		t.Fatalf("unexpected export envelope: %+v", envelope)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pomodoro/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on csv export, got %d", recorder.Code)
	}
	if !strings.HasPrefix(recorder.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type: %s", recorder.Header().Get("Content-Type"))
	}
	rows, err := csv.NewReader(recorder.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(rows))
	}

	status, _ = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/export?format=xml", user.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", status)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/stats?days=3", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on stats, got %d", status)
	}
	var stats struct {
		PeriodDays    int `json:"period_days"`
		TotalSessions int `json:"total_sessions"`
		Daily         []struct {
			Date string `json:"date"`
		} `json:"daily"`
	}
	mustUnmarshal(t, raw, &stats)
	if stats.PeriodDays != 3 || stats.TotalSessions != 2 || len(stats.Daily) != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTimerEventStream(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "stream@example.com", "123456")

	server := httptest.NewServer(engine)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/timer/events?access_token="+user.Token, nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event:") {
				received <- strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				return
			}
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		timerCall(t, engine, http.MethodPost, "/api/timer/start", user.Token, nil)
		timerCall(t, engine, http.MethodPost, "/api/timer/pause", user.Token, nil)
		select {
		case name := <-received:
			if name != "state_change" && name != "tick" {
				t.Fatalf("unexpected event %q", name)
			}
			return
		case <-deadline:
			t.Fatal("no event received from stream")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/pomodoro/sessions/abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("DELETE not allowed: %s", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, db.MigrationSource(migrationsDir)); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	userRepo := repository.NewUserRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)
	pomodoroRepo := repository.NewPomodoroRepository(database)
	authService := service.NewAuthService(userRepo, settingsRepo, "test-secret", 24*time.Hour)
	pomodoroService := service.NewPomodoroService(pomodoroRepo, settingsRepo)
	timerService := service.NewTimerService(ctx, pomodoroService, service.TimerServiceOptions{CallTimeout: time.Second})

	authHandler := handler.NewAuthHandler(authService)
	pomodoroHandler := handler.NewPomodoroHandler(pomodoroService)
	timerHandler := handler.NewTimerHandler(timerService)

	return router.New(authService, authHandler, pomodoroHandler, timerHandler, []string{"http://localhost:5173"})
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	mustUnmarshal(t, body, &resp)
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func listSessions(t *testing.T, server http.Handler, token, query string) []sessionView {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/pomodoro/sessions"+query, token, nil)
	if status != http.StatusOK {
		t.Fatalf("list sessions failed with status %d: %s", status, string(body))
	}
	var resp sessionsEnvelope
	mustUnmarshal(t, body, &resp)
	return resp.Sessions
}

func timerCall(t *testing.T, server http.Handler, method, path, token string, body interface{}) stateEnvelope {
	t.Helper()
	status, raw := requestJSON(t, server, method, path, token, body)
	if status != http.StatusOK {
		t.Fatalf("%s %s failed with status %d: %s", method, path, status, string(raw))
	}
	var resp stateEnvelope
	mustUnmarshal(t, raw, &resp)
	return resp
}

func mustUnmarshal(t *testing.T, raw []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("unmarshal %s: %v", string(raw), err)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
