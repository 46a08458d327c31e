package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation floors. The web UI can push arbitrary numbers; anything
// below these would either hammer the companion link or flap the
// online indicator.
const (
	MinPollIntervalSeconds   = 30
	MinStaggerDelaySeconds   = 5
	MinStaleThresholdSeconds = 60
	MinRetentionHours        = 1
)

// RepeaterSettings represents one configured repeater. The order of the
// repeater list is the polling order and is stable.
type RepeaterSettings struct {
	Name      string `yaml:"name" json:"name"`
	PublicKey string `yaml:"pubkey" json:"pubkey"`
	// Path is an optional fixed route as comma-separated hex hops
	// ("4d,3c,ee"); empty means flood routing.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// AdminPassword authenticates status requests against the repeater
	// firmware. Opaque to the engine.
	AdminPassword string `yaml:"admin_password,omitempty" json:"adminPassword,omitempty"`
}

// Settings represents the operator-editable runtime settings. The poll
// scheduler re-reads these at each cycle boundary.
type Settings struct {
	CompanionHost string `yaml:"companion_host" json:"companionHost"`
	CompanionPort int    `yaml:"companion_port" json:"companionPort"`

	Repeaters []RepeaterSettings `yaml:"repeaters" json:"repeaters"`

	PollIntervalSeconds   int `yaml:"poll_interval_seconds" json:"pollIntervalSeconds"`
	StaggerDelaySeconds   int `yaml:"stagger_delay_seconds" json:"staggerDelaySeconds"`
	StaleThresholdSeconds int `yaml:"stale_threshold_seconds" json:"staleThresholdSeconds"`

	PollTimeoutSeconds int `yaml:"poll_timeout_seconds" json:"pollTimeoutSeconds"`
	PingTimeoutSeconds int `yaml:"ping_timeout_seconds" json:"pingTimeoutSeconds"`

	// LowBatteryPercent is presentation-only; the engine never reads it.
	LowBatteryPercent int `yaml:"low_battery_percent" json:"lowBatteryPercent"`

	TelemetryRetentionHours int `yaml:"telemetry_retention_hours" json:"telemetryRetentionHours"`
	LogRetentionHours       int `yaml:"log_retention_hours" json:"logRetentionHours"`
}

// DefaultSettings returns the settings used before anything is saved
func DefaultSettings() Settings {
	return Settings{
		CompanionPort:           5000,
		PollIntervalSeconds:     120,
		StaggerDelaySeconds:     15,
		StaleThresholdSeconds:   900,
		PollTimeoutSeconds:      30,
		PingTimeoutSeconds:      10,
		LowBatteryPercent:       20,
		TelemetryRetentionHours: 7 * 24,
		LogRetentionHours:       24,
	}
}

// Validate checks mandatory fields and clamps none; invalid settings are
// rejected outright so the caller can report them to the web UI.
func (s *Settings) Validate() error {
	if s.CompanionHost == "" {
		return errors.New("companion host is required")
	}
	if s.CompanionPort <= 0 || s.CompanionPort > 65535 {
		return fmt.Errorf("invalid companion port %d", s.CompanionPort)
	}

	for i, r := range s.Repeaters {
		if r.Name == "" || r.PublicKey == "" {
			return fmt.Errorf("repeater %d: name and pubkey are required", i)
		}
	}

	if s.PollIntervalSeconds < MinPollIntervalSeconds {
		return fmt.Errorf("poll interval %ds below minimum %ds", s.PollIntervalSeconds, MinPollIntervalSeconds)
	}
	if s.StaggerDelaySeconds < MinStaggerDelaySeconds {
		return fmt.Errorf("stagger delay %ds below minimum %ds", s.StaggerDelaySeconds, MinStaggerDelaySeconds)
	}
	if s.StaleThresholdSeconds < MinStaleThresholdSeconds {
		return fmt.Errorf("stale threshold %ds below minimum %ds", s.StaleThresholdSeconds, MinStaleThresholdSeconds)
	}
	if s.PollTimeoutSeconds <= 0 {
		return errors.New("poll timeout must be positive")
	}
	if s.PingTimeoutSeconds <= 0 {
		return errors.New("ping timeout must be positive")
	}
	if s.TelemetryRetentionHours < MinRetentionHours {
		return fmt.Errorf("telemetry retention %dh below minimum %dh", s.TelemetryRetentionHours, MinRetentionHours)
	}
	if s.LogRetentionHours < MinRetentionHours {
		return fmt.Errorf("log retention %dh below minimum %dh", s.LogRetentionHours, MinRetentionHours)
	}

	return nil
}

// PollInterval returns the poll cycle period
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// StaggerDelay returns the spacing between consecutive repeater polls
func (s *Settings) StaggerDelay() time.Duration {
	return time.Duration(s.StaggerDelaySeconds) * time.Second
}

// StaleThreshold returns the silence duration after which a repeater is
// considered offline
func (s *Settings) StaleThreshold() time.Duration {
	return time.Duration(s.StaleThresholdSeconds) * time.Second
}

// PollTimeout returns the per-call gateway timeout for scheduled polls
func (s *Settings) PollTimeout() time.Duration {
	return time.Duration(s.PollTimeoutSeconds) * time.Second
}

// PingTimeout returns the per-call gateway timeout for interactive pings
func (s *Settings) PingTimeout() time.Duration {
	return time.Duration(s.PingTimeoutSeconds) * time.Second
}

// loadOverlay merges a saved settings file on top of the receiver. A
// missing file is not an error; it just means nothing was saved yet.
func (s *Settings) loadOverlay(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filename, err)
	}

	return nil
}

// save persists the settings overlay
func (s *Settings) save(filename string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return os.Rename(tmp, filename)
}
