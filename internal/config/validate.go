package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Valid log levels and formats.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks a Config for semantic errors: unparseable durations,
// malformed URLs, negative goals, unrecognized logging options. All
// problems are reported at once rather than one per run.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateURL("provider.healthd_url", cfg.Provider.HealthdURL); err != nil {
		errs = append(errs, err)
	}

	if err := validateURL("scoring.base_url", cfg.Scoring.BaseURL); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateSync(cfg.Sync)...)
	errs = append(errs, validateGoals(cfg.Goals)...)

	if !validLogLevels[cfg.Logging.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level %q: must be debug, info, warn, or error", cfg.Logging.LogLevel))
	}

	if !validLogFormats[cfg.Logging.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format %q: must be auto, text, or json", cfg.Logging.LogFormat))
	}

	return errors.Join(errs...)
}

func validateSync(s SyncConfig) []error {
	var errs []error

	for _, d := range []struct {
		key   string
		value string
	}{
		{"sync.interval", s.Interval},
		{"sync.fetch_deadline", s.FetchDeadline},
		{"sync.backfill_delay", s.BackfillDelay},
	} {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", d.key, d.value, err))
			continue
		}

		if parsed < 0 {
			errs = append(errs, fmt.Errorf("%s %q: must not be negative", d.key, d.value))
		}
	}

	return errs
}

func validateGoals(g GoalsConfig) []error {
	var errs []error

	if g.MoveCalories <= 0 {
		errs = append(errs, fmt.Errorf("goals.move_calories %v: must be positive", g.MoveCalories))
	}

	if g.ExerciseMinutes <= 0 {
		errs = append(errs, fmt.Errorf("goals.exercise_minutes %d: must be positive", g.ExerciseMinutes))
	}

	if g.StandHours <= 0 {
		errs = append(errs, fmt.Errorf("goals.stand_hours %d: must be positive", g.StandHours))
	}

	if g.Steps < 0 {
		errs = append(errs, fmt.Errorf("goals.steps %d: must not be negative", g.Steps))
	}

	return errs
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s: must not be empty", key)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", key, raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q: scheme must be http or https", key, raw)
	}

	if u.Host == "" {
		return fmt.Errorf("%s %q: missing host", key, raw)
	}

	return nil
}

// SyncInterval returns the parsed watch-mode interval. Call only on a
// validated Config.
func (c *Config) SyncInterval() time.Duration {
	d, _ := time.ParseDuration(c.Sync.Interval)
	return d
}

// FetchDeadline returns the parsed per-fetch deadline.
func (c *Config) FetchDeadline() time.Duration {
	d, _ := time.ParseDuration(c.Sync.FetchDeadline)
	return d
}

// BackfillDelay returns the parsed inter-day backfill delay.
func (c *Config) BackfillDelay() time.Duration {
	d, _ := time.ParseDuration(c.Sync.BackfillDelay)
	return d
}

// TokenPath returns the configured token file path, or the platform
// default when unset.
func (c *Config) TokenPath() string {
	if c.Scoring.TokenFile != "" {
		return c.Scoring.TokenFile
	}

	return DefaultTokenPath()
}
