package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. There is no package-level
// mutable state; everything the bot needs is carried in this struct.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Schedule ScheduleConfig `yaml:"schedule"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup BackupConfig `yaml:"backup"`

	Sheets struct {
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
	} `yaml:"sheets"`

	RateLimit struct {
		PerUserPerMinute int `yaml:"per_user_per_minute"`
	} `yaml:"rate_limit"`

	Managers []int64 `yaml:"managers"`
}

// ScheduleConfig describes the daily slot catalog.
type ScheduleConfig struct {
	DayStart       string `yaml:"day_start"` // "08:00"
	DayEnd         string `yaml:"day_end"`   // "20:00"; "24:00" means end of day
	SlotMinutes    int    `yaml:"slot_minutes"`
	Capacity       int    `yaml:"capacity"`
	Timezone       string `yaml:"timezone"`
	LookaheadHours int    `yaml:"lookahead_hours"`
	ListLimit      int    `yaml:"list_limit"`
}

// BackupConfig controls the periodic database file backup.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/breakbot.db"
	}
	if c.Schedule.DayStart == "" {
		c.Schedule.DayStart = "08:00"
	}
	if c.Schedule.DayEnd == "" {
		c.Schedule.DayEnd = "20:00"
	}
	if c.Schedule.SlotMinutes <= 0 {
		c.Schedule.SlotMinutes = 15
	}
	if c.Schedule.Capacity <= 0 {
		c.Schedule.Capacity = 3
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Europe/Moscow"
	}
	if c.Schedule.LookaheadHours <= 0 {
		c.Schedule.LookaheadHours = 4
	}
	if c.Schedule.ListLimit <= 0 {
		c.Schedule.ListLimit = 12
	}
	if c.RateLimit.PerUserPerMinute <= 0 {
		c.RateLimit.PerUserPerMinute = 20
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// SlotLength returns the slot window length as a duration.
func (c *Config) SlotLength() time.Duration {
	return time.Duration(c.Schedule.SlotMinutes) * time.Minute
}

// Lookahead returns the availability look-ahead window.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.Schedule.LookaheadHours) * time.Hour
}
