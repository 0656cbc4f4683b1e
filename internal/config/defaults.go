package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work out of the box against a local health daemon.
const (
	defaultHealthdURL    = "http://127.0.0.1:9723"
	defaultScoringURL    = "https://api.ringsync.dev"
	defaultInterval      = "15m"
	defaultFetchDeadline = "10s"
	defaultBackfillDelay = "200ms"
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"

	defaultMoveCalories    = 500
	defaultExerciseMinutes = 30
	defaultStandHours      = 12
	defaultSteps           = 10000
)

// DefaultConfig returns a Config populated with all default values.
// This is the starting point for TOML decoding (so unset fields retain
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			HealthdURL: defaultHealthdURL,
		},
		Scoring: ScoringConfig{
			BaseURL: defaultScoringURL,
		},
		Sync: SyncConfig{
			Interval:      defaultInterval,
			FetchDeadline: defaultFetchDeadline,
			BackfillDelay: defaultBackfillDelay,
		},
		Goals: GoalsConfig{
			MoveCalories:    defaultMoveCalories,
			ExerciseMinutes: defaultExerciseMinutes,
			StandHours:      defaultStandHours,
			Steps:           defaultSteps,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
