package service

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"cortex/workspace/internal/model"
)

var csvHeader = []string{
	"id", "session_type", "duration", "actual_duration", "completed",
	"theme", "task_id", "notes", "started_at", "completed_at",
}

// WriteSessionsCSV writes sessions as CSV with a header row.
func WriteSessionsCSV(w io.Writer, sessions []model.PomodoroSession) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, session := range sessions {
		completedAt := ""
		if session.CompletedAt != nil {
			completedAt = session.CompletedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			session.ID,
			string(session.SessionType),
			strconv.Itoa(session.DurationMinutes),
			strconv.Itoa(session.ActualDurationMinutes),
			strconv.FormatBool(session.Completed),
			session.Theme,
			deref(session.TaskID),
			deref(session.Notes),
			session.StartedAt.UTC().Format(time.RFC3339),
			completedAt,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
