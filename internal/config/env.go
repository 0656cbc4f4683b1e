package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig     = "RINGSYNC_CONFIG"
	EnvUserID     = "RINGSYNC_USER_ID"
	EnvHealthdURL = "RINGSYNC_HEALTHD_URL"
	EnvScoringURL = "RINGSYNC_SCORING_URL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // RINGSYNC_CONFIG: override config file path
	UserID     string // RINGSYNC_USER_ID: scoring user identity
	HealthdURL string // RINGSYNC_HEALTHD_URL: local daemon address
	ScoringURL string // RINGSYNC_SCORING_URL: scoring service address
}

// ReadEnvOverrides reads environment variables and returns any
// overrides found. This does not modify the Config; Resolve applies
// the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		UserID:     os.Getenv(EnvUserID),
		HealthdURL: os.Getenv(EnvHealthdURL),
		ScoringURL: os.Getenv(EnvScoringURL),
	}
}
