package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Everything here is
// fixed at startup; the operator-editable polling settings live in
// Settings and are managed at runtime by Manager.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`

	// SettingsFile is where web-edited settings are persisted. Values in
	// that file override the defaults baked into Settings.
	SettingsFile string `yaml:"settings_file"`

	Settings Settings `yaml:"settings"`
}

// ServerConfig represents server identity
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents REST API bind configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebConfig represents the static dashboard UI configuration
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig represents history database configuration. An empty DSN
// disables durable history; the service then runs on the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents the optional event bus configuration. An empty
// URL disables integration publishing.
type NATSConfig struct {
	URL               string        `yaml:"url"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// AdminConfig represents the single operator credential protecting
// settings mutation
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
	// MirrorLevel is the minimum level mirrored into the activity log
	// store for the dashboard log viewer.
	MirrorLevel string `yaml:"mirror_level"`
}

// Load loads configuration from file and merges the persisted settings
// overlay on top of the baked-in defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Config{Settings: DefaultSettings()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	// 加载网页端保存的 settings 覆盖层
	if cfg.SettingsFile != "" {
		if err := cfg.Settings.loadOverlay(cfg.SettingsFile); err != nil {
			return nil, fmt.Errorf("load settings overlay: %w", err)
		}
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if host := os.Getenv("COMPANION_HOST"); host != "" {
		c.Settings.CompanionHost = host
	}
}

// setDefaults fills unset fields with working defaults
func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "MeshCore Repeater Dashboard"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 5 * time.Second
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = time.Hour
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MirrorLevel == "" {
		c.Log.MirrorLevel = "info"
	}
	if c.SettingsFile == "" {
		c.SettingsFile = "settings.yml"
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
}
