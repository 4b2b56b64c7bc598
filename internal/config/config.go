// Package config loads vaultpilot configuration from YAML plus an
// optional .env file for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full vaultpilot configuration.
type Config struct {
	// Vault is the root directory of the markdown vault.
	Vault string `yaml:"vault"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ralph     RalphConfig     `yaml:"ralph"`
	Logging   LoggingConfig   `yaml:"error_logging"`
}

// SchedulerConfig controls cycle cadence and report timing.
type SchedulerConfig struct {
	// IntervalMinutes between daemon cycles.
	IntervalMinutes int `yaml:"interval_minutes"`
	// DailyReportTime is an HH:MM local time.
	DailyReportTime string `yaml:"daily_report_time"`
	// WeeklyBriefingDay is a lowercase weekday name.
	WeeklyBriefingDay string `yaml:"weekly_briefing_day"`
	// WeeklyBriefingTime is an HH:MM local time.
	WeeklyBriefingTime string `yaml:"weekly_briefing_time"`
}

// RalphConfig bounds the autonomous processor.
type RalphConfig struct {
	// MaxRetriesPerTask before a task is parked as blocked.
	MaxRetriesPerTask int `yaml:"max_retries_per_task"`
	// MaxCycles per ralph run.
	MaxCycles int `yaml:"max_cycles"`
}

// LoggingConfig controls error escalation and log rotation.
type LoggingConfig struct {
	// AlertThreshold errors per source within the window escalate.
	AlertThreshold int `yaml:"alert_threshold"`
	// AlertWindowSeconds is the sliding escalation window.
	AlertWindowSeconds int `yaml:"alert_window_seconds"`
	// MaxFileSizeMB triggers log rotation.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Vault: "AI_Employee_Vault",
		Scheduler: SchedulerConfig{
			IntervalMinutes:    5,
			DailyReportTime:    "18:00",
			WeeklyBriefingDay:  "monday",
			WeeklyBriefingTime: "08:00",
		},
		Ralph: RalphConfig{
			MaxRetriesPerTask: 3,
			MaxCycles:         10,
		},
		Logging: LoggingConfig{
			AlertThreshold:     3,
			AlertWindowSeconds: 3600,
			MaxFileSizeMB:      50,
		},
	}
}

// Load reads configuration from a YAML file. A missing file returns
// defaults; a malformed or invalid file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Vault == "" {
		return fmt.Errorf("vault path cannot be empty")
	}
	if c.Scheduler.IntervalMinutes < 1 {
		return fmt.Errorf("interval_minutes must be at least 1")
	}
	if _, err := ParseClock(c.Scheduler.DailyReportTime); err != nil {
		return fmt.Errorf("daily_report_time: %w", err)
	}
	if _, err := ParseClock(c.Scheduler.WeeklyBriefingTime); err != nil {
		return fmt.Errorf("weekly_briefing_time: %w", err)
	}
	if !validWeekdays[c.Scheduler.WeeklyBriefingDay] {
		return fmt.Errorf("invalid weekly_briefing_day %q", c.Scheduler.WeeklyBriefingDay)
	}
	if c.Ralph.MaxRetriesPerTask < 1 {
		return fmt.Errorf("max_retries_per_task must be at least 1")
	}
	if c.Ralph.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be at least 1")
	}
	if c.Logging.AlertThreshold < 1 {
		return fmt.Errorf("alert_threshold must be at least 1")
	}
	return nil
}

// Interval returns the daemon cycle interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

// AlertWindow returns the escalation window as a duration.
func (c *Config) AlertWindow() time.Duration {
	return time.Duration(c.Logging.AlertWindowSeconds) * time.Second
}

var validWeekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ParseClock validates an HH:MM string and returns hour and minute.
func ParseClock(s string) (Clock, error) {
	var c Clock
	if _, err := fmt.Sscanf(s, "%d:%d", &c.Hour, &c.Minute); err != nil {
		return c, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return c, fmt.Errorf("time %q out of range", s)
	}
	return c, nil
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// At returns the Clock on the given day in that day's location.
func (c Clock) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}
