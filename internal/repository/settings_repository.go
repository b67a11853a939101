package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cortex/workspace/internal/model"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (*model.TimerSettings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT work_duration_minutes, short_break_minutes, long_break_minutes,
		        long_break_interval, auto_start_next, sound_enabled, sound_volume, theme
		 FROM user_settings
		 WHERE user_id = ?`,
		userID,
	)

	var settings model.TimerSettings
	err := row.Scan(
		&settings.WorkDurationMinutes,
		&settings.ShortBreakMinutes,
		&settings.LongBreakMinutes,
		&settings.LongBreakInterval,
		&settings.AutoStartNext,
		&settings.SoundEnabled,
		&settings.SoundVolume,
		&settings.Theme,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, userID string, settings model.TimerSettings) error {
	return upsertSettings(ctx, r.db, userID, settings)
}

func (r *SettingsRepository) UpsertTx(ctx context.Context, tx *sql.Tx, userID string, settings model.TimerSettings) error {
	return upsertSettings(ctx, tx, userID, settings)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertSettings(ctx context.Context, db execer, userID string, settings model.TimerSettings) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO user_settings (
			user_id, work_duration_minutes, short_break_minutes, long_break_minutes,
			long_break_interval, auto_start_next, sound_enabled, sound_volume, theme, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			work_duration_minutes = excluded.work_duration_minutes,
			short_break_minutes = excluded.short_break_minutes,
			long_break_minutes = excluded.long_break_minutes,
			long_break_interval = excluded.long_break_interval,
			auto_start_next = excluded.auto_start_next,
			sound_enabled = excluded.sound_enabled,
			sound_volume = excluded.sound_volume,
			theme = excluded.theme,
			updated_at = excluded.updated_at`,
		userID,
		settings.WorkDurationMinutes,
		settings.ShortBreakMinutes,
		settings.LongBreakMinutes,
		settings.LongBreakInterval,
		settings.AutoStartNext,
		settings.SoundEnabled,
		settings.SoundVolume,
		settings.Theme,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
