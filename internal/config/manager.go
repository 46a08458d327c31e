package config

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager owns the live settings. The web API replaces them through
// Update; the poll scheduler snapshots them at each cycle boundary and
// watches Changes to wake up early when something was saved.
type Manager struct {
	mu       sync.RWMutex
	cfg      *Config
	settings Settings
	changes  chan struct{}
}

// NewManager creates a settings manager seeded from the loaded config
func NewManager(cfg *Config) *Manager {
	return &Manager{
		cfg:      cfg,
		settings: cfg.Settings,
		changes:  make(chan struct{}, 1),
	}
}

// Settings returns a copy of the current settings
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.settings
	s.Repeaters = append([]RepeaterSettings(nil), m.settings.Repeaters...)
	return s
}

// Update validates, persists and installs new settings, then signals the
// change channel. The signal is coalescing: an unconsumed signal covers
// any number of updates, since consumers always re-read Settings().
func (m *Manager) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := s.save(m.cfg.SettingsFile); err != nil {
		return err
	}
	m.settings = s

	log.Info().
		Str("companion", s.CompanionHost).
		Int("port", s.CompanionPort).
		Int("repeaters", len(s.Repeaters)).
		Msg("Settings saved")

	select {
	case m.changes <- struct{}{}:
	default:
	}

	return nil
}

// Changes returns the change notification channel
func (m *Manager) Changes() <-chan struct{} {
	return m.changes
}
