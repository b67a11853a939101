package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cortex/workspace/internal/model"
	"cortex/workspace/internal/timer"
)

const settingsFileName = "timer.yaml"

// YAMLSettings is a timer.SettingsStore backed by a YAML file.
type YAMLSettings struct {
	Path string
}

var _ timer.SettingsStore = (*YAMLSettings)(nil)

// DefaultSettingsPath returns <user config dir>/<appName>/timer.yaml.
func DefaultSettingsPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

// LoadSettings reads the settings file. A missing file yields the defaults and
// keys absent from the file keep their default values.
func (s *YAMLSettings) LoadSettings(context.Context) (model.TimerSettings, error) {
	settings := model.DefaultTimerSettings()

	rawData, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	if err := yaml.Unmarshal(rawData, &settings); err != nil {
		return model.DefaultTimerSettings(), fmt.Errorf("parse settings yaml: %w", err)
	}

	validated, err := timer.ValidateSettings(settings)
	if err != nil {
		return model.DefaultTimerSettings(), fmt.Errorf("settings file %s: %w", s.Path, err)
	}
	return validated, nil
}

// SaveSettings validates settings and replaces the file.
func (s *YAMLSettings) SaveSettings(_ context.Context, settings model.TimerSettings) error {
	validated, err := timer.ValidateSettings(settings)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	serialized, err := yaml.Marshal(validated)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
