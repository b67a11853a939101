package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cortex/workspace/internal/model"
)

const sessionColumns = `id, user_id, session_type, duration_minutes, actual_duration_minutes,
	completed, theme, task_id, notes, started_at, completed_at, created_at, updated_at`

type PomodoroRepository struct {
	db *sql.DB
}

func NewPomodoroRepository(db *sql.DB) *PomodoroRepository {
	return &PomodoroRepository{db: db}
}

func (r *PomodoroRepository) CreateSession(ctx context.Context, session *model.PomodoroSession) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.SessionType,
		session.DurationMinutes,
		session.ActualDurationMinutes,
		session.Completed,
		session.Theme,
		nullString(session.TaskID),
		nullString(session.Notes),
		formatTime(session.StartedAt),
		completedAtValue(session),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PomodoroRepository) GetSession(ctx context.Context, userID, sessionID string) (*model.PomodoroSession, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+`
		 FROM pomodoro_sessions
		 WHERE id = ? AND user_id = ?`,
		sessionID,
		userID,
	)
	return scanPomodoroSession(row)
}

// UpdateSession writes every mutable column of session.
func (r *PomodoroRepository) UpdateSession(ctx context.Context, session *model.PomodoroSession) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE pomodoro_sessions
		 SET actual_duration_minutes = ?,
		     completed = ?,
		     theme = ?,
		     task_id = ?,
		     notes = ?,
		     completed_at = ?,
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		session.ActualDurationMinutes,
		session.Completed,
		session.Theme,
		nullString(session.TaskID),
		nullString(session.Notes),
		completedAtValue(session),
		formatTime(session.UpdatedAt),
		session.ID,
		session.UserID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireAffected(result)
}

func (r *PomodoroRepository) DeleteSession(ctx context.Context, userID, sessionID string) error {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM pomodoro_sessions WHERE id = ? AND user_id = ?`,
		sessionID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(result)
}

// DeleteSessions removes the listed sessions owned by userID and reports how
// many rows went away.
func (r *PomodoroRepository) DeleteSessions(ctx context.Context, userID string, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	args := make([]interface{}, 0, len(sessionIDs)+1)
	args = append(args, userID)
	for _, id := range sessionIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")

	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM pomodoro_sessions WHERE user_id = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return affected, nil
}

// ListSessions returns sessions newest first. A zero filter.Limit means no limit.
func (r *PomodoroRepository) ListSessions(ctx context.Context, userID string, filter model.SessionFilter) ([]model.PomodoroSession, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + sessionColumns + ` FROM pomodoro_sessions WHERE user_id = ?`)
	args := []interface{}{userID}

	if filter.SessionType != "" {
		query.WriteString(` AND session_type = ?`)
		args = append(args, filter.SessionType)
	}
	if filter.From != nil {
		query.WriteString(` AND started_at >= ?`)
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		query.WriteString(` AND started_at < ?`)
		args = append(args, formatTime(*filter.To))
	}
	if filter.TaskID != "" {
		query.WriteString(` AND task_id = ?`)
		args = append(args, filter.TaskID)
	}
	query.WriteString(` ORDER BY started_at DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.PomodoroSession, 0, filter.Limit)
	for rows.Next() {
		session, scanErr := scanPomodoroSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (r *PomodoroRepository) TaskStats(ctx context.Context, userID, taskID string) (*model.TaskStats, error) {
	stats := model.TaskStats{TaskID: taskID}
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1), COALESCE(SUM(actual_duration_minutes), 0)
		 FROM pomodoro_sessions
		 WHERE user_id = ? AND task_id = ? AND completed = 1`,
		userID,
		taskID,
	).Scan(&stats.CompletedSessions, &stats.TotalMinutes)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return &stats, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPomodoroSession(s scanner) (*model.PomodoroSession, error) {
	session := model.PomodoroSession{}
	var taskID sql.NullString
	var notes sql.NullString
	var startedAt string
	var completedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.SessionType,
		&session.DurationMinutes,
		&session.ActualDurationMinutes,
		&session.Completed,
		&session.Theme,
		&taskID,
		&notes,
		&startedAt,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if taskID.Valid {
		value := taskID.String
		session.TaskID = &value
	}
	if notes.Valid {
		value := notes.String
		session.Notes = &value
	}

	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	if completedAt.Valid {
		parsed, parseErr := parseTime(completedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse session completed_at: %w", parseErr)
		}
		session.CompletedAt = &parsed
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}

	return &session, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func completedAtValue(session *model.PomodoroSession) interface{} {
	if session.CompletedAt == nil {
		return nil
	}
	return formatTime(*session.CompletedAt)
}
