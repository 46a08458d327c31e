package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := `api:
  host: "127.0.0.1"
  port: 9090
settings_file: "` + filepath.Join(dir, "settings.yml") + `"
settings:
  companion_host: "10.0.0.5"
  companion_port: 5000
  repeaters:
    - name: "Hilltop"
      pubkey: "a1b2c3d4e5f6"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "10.0.0.5", cfg.Settings.CompanionHost)
	require.Len(t, cfg.Settings.Repeaters, 1)
	assert.Equal(t, "Hilltop", cfg.Settings.Repeaters[0].Name)

	// Unset fields fall back to defaults
	assert.Equal(t, 120, cfg.Settings.PollIntervalSeconds)
	assert.Equal(t, 15, cfg.Settings.StaggerDelaySeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestLoadAppliesSettingsOverlay(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.yml")

	overlay := `companion_host: "10.0.0.5"
companion_port: 5000
poll_interval_seconds: 300
stagger_delay_seconds: 15
stale_threshold_seconds: 900
poll_timeout_seconds: 30
ping_timeout_seconds: 10
telemetry_retention_hours: 48
log_retention_hours: 24
repeaters:
  - name: "Saved Repeater"
    pubkey: "deadbeef"
`
	require.NoError(t, os.WriteFile(settingsPath, []byte(overlay), 0o644))

	path := filepath.Join(dir, "config.yml")
	body := `settings_file: "` + settingsPath + `"
settings:
  companion_host: "ignored.example"
  companion_port: 5000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overlay wins over the baked-in config values
	assert.Equal(t, "10.0.0.5", cfg.Settings.CompanionHost)
	assert.Equal(t, 300, cfg.Settings.PollIntervalSeconds)
	assert.Equal(t, 48, cfg.Settings.TelemetryRetentionHours)
	require.Len(t, cfg.Settings.Repeaters, 1)
	assert.Equal(t, "Saved Repeater", cfg.Settings.Repeaters[0].Name)
}

func TestLoadMissingOverlayIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := `settings_file: "` + filepath.Join(dir, "nope.yml") + `"
settings:
  companion_host: "10.0.0.5"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	assert.NoError(t, err)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		valid  bool
	}{
		{"defaults with host", func(s *Settings) {}, true},
		{"missing host", func(s *Settings) { s.CompanionHost = "" }, false},
		{"bad port", func(s *Settings) { s.CompanionPort = 0 }, false},
		{"poll interval below floor", func(s *Settings) { s.PollIntervalSeconds = MinPollIntervalSeconds - 1 }, false},
		{"poll interval at floor", func(s *Settings) { s.PollIntervalSeconds = MinPollIntervalSeconds }, true},
		{"stagger below floor", func(s *Settings) { s.StaggerDelaySeconds = MinStaggerDelaySeconds - 1 }, false},
		{"stale below floor", func(s *Settings) { s.StaleThresholdSeconds = MinStaleThresholdSeconds - 1 }, false},
		{"retention below floor", func(s *Settings) { s.TelemetryRetentionHours = 0 }, false},
		{"zero poll timeout", func(s *Settings) { s.PollTimeoutSeconds = 0 }, false},
		{"repeater without pubkey", func(s *Settings) {
			s.Repeaters = []RepeaterSettings{{Name: "x"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.CompanionHost = "10.0.0.5"
			tt.mutate(&s)

			err := s.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestManagerUpdatePersistsAndSignals(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		SettingsFile: filepath.Join(dir, "settings.yml"),
		Settings:     DefaultSettings(),
	}
	cfg.Settings.CompanionHost = "10.0.0.5"

	m := NewManager(cfg)

	updated := m.Settings()
	updated.PollIntervalSeconds = 300
	require.NoError(t, m.Update(updated))

	assert.Equal(t, 300, m.Settings().PollIntervalSeconds)

	select {
	case <-m.Changes():
	default:
		t.Fatal("update did not signal a change")
	}

	// The overlay file was written and survives a reload
	reloaded := DefaultSettings()
	require.NoError(t, reloaded.loadOverlay(cfg.SettingsFile))
	assert.Equal(t, 300, reloaded.PollIntervalSeconds)
}

func TestManagerUpdateRejectsInvalid(t *testing.T) {
	cfg := &Config{
		SettingsFile: filepath.Join(t.TempDir(), "settings.yml"),
		Settings:     DefaultSettings(),
	}
	cfg.Settings.CompanionHost = "10.0.0.5"

	m := NewManager(cfg)

	bad := m.Settings()
	bad.PollIntervalSeconds = 1
	require.Error(t, m.Update(bad))

	// Rejected update must not touch the installed settings
	assert.Equal(t, 120, m.Settings().PollIntervalSeconds)
}
