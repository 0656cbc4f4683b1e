// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ringsync. It supports a
// three-layer override chain (defaults -> config file -> environment ->
// CLI flags) with strict unknown-key detection.
package config

// Config is the top-level configuration structure parsed from a TOML
// file.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Sync     SyncConfig     `toml:"sync"`
	Goals    GoalsConfig    `toml:"goals"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ProviderConfig selects and addresses the metrics provider.
type ProviderConfig struct {
	// HealthdURL is the loopback address of the local health daemon.
	HealthdURL string `toml:"healthd_url"`
}

// ScoringConfig addresses the remote scoring service.
type ScoringConfig struct {
	BaseURL string `toml:"base_url"`
	// TokenFile overrides the default token path under the data dir.
	TokenFile string `toml:"token_file"`
	UserID    string `toml:"user_id"`
}

// SyncConfig controls sync engine behavior: the watch-mode interval,
// per-fetch deadlines, and backfill pacing.
type SyncConfig struct {
	Interval      string `toml:"interval"`
	FetchDeadline string `toml:"fetch_deadline"`
	BackfillDelay string `toml:"backfill_delay"`
}

// GoalsConfig holds fallback daily goal targets, used until the
// provider reports a valid goal set or the user sets one explicitly.
type GoalsConfig struct {
	MoveCalories    float64 `toml:"move_calories"`
	ExerciseMinutes int     `toml:"exercise_minutes"`
	StandHours      int     `toml:"stand_hours"`
	Steps           int     `toml:"steps"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// CLIOverrides holds values from CLI flags that override config file
// and environment settings. Pointer fields distinguish "not specified"
// (nil) from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	UserID     *string // --user flag
	HealthdURL *string // --healthd-url flag
	LogLevel   *string // --log-level flag
}
