// Package config loads the goal engine's TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all goal engine configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Notifications NotificationsConfig `toml:"notifications"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	Timezone       string   `toml:"timezone,omitempty"`
	Metrics        bool     `toml:"metrics"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SchedulerConfig controls the evaluation cycle.
type SchedulerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Interval     Duration `toml:"interval"`
	QueryTimeout Duration `toml:"query_timeout"`
}

// NotificationsConfig holds dispatcher thresholds.
type NotificationsConfig struct {
	Window           Duration `toml:"window"`
	DeadlineDays     int      `toml:"deadline_days"`
	OffTrackDays     int      `toml:"offtrack_days"`
	OffTrackBelow    float64  `toml:"offtrack_below"`
	MilestoneOnce    bool     `toml:"milestone_once"`
	ThrottleWarnings bool     `toml:"throttle_warnings"`
}

// LoggingConfig holds logrus settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// Duration is a time.Duration read from strings like "30s" or "24h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			Metrics:        true,
		},
		Database: DatabaseConfig{
			Path: "./data/goals.db",
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     Duration{30 * time.Second},
			QueryTimeout: Duration{10 * time.Second},
		},
		Notifications: NotificationsConfig{
			Window:           Duration{24 * time.Hour},
			DeadlineDays:     3,
			OffTrackDays:     7,
			OffTrackBelow:    50,
			ThrottleWarnings: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, returning defaults if it doesn't exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Scheduler.Interval.Duration <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Notifications.Window.Duration <= 0 {
		return fmt.Errorf("notifications.window must be positive")
	}
	if c.Notifications.OffTrackBelow < 0 || c.Notifications.OffTrackBelow > 100 {
		return fmt.Errorf("notifications.offtrack_below must be within [0,100]")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Server.Timezone; empty means the process's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("server.timezone: %w", err)
	}
	return loc, nil
}

// Save writes cfg as TOML to path.
func Save(path string, cfg Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
