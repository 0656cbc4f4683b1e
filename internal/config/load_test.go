package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[provider]
healthd_url = "http://127.0.0.1:9800"

[scoring]
base_url = "https://scoring.example.com"
user_id = "user-42"

[sync]
interval = "5m"

[goals]
move_calories = 650
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9800", cfg.Provider.HealthdURL)
	assert.Equal(t, "https://scoring.example.com", cfg.Scoring.BaseURL)
	assert.Equal(t, "user-42", cfg.Scoring.UserID)
	assert.Equal(t, "5m", cfg.Sync.Interval)
	assert.InDelta(t, 650.0, cfg.Goals.MoveCalories, 0.001)

	// Unset fields keep their defaults.
	assert.Equal(t, defaultFetchDeadline, cfg.Sync.FetchDeadline)
	assert.Equal(t, defaultExerciseMinutes, cfg.Goals.ExerciseMinutes)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoad_UnknownKeySuggestsClosest(t *testing.T) {
	path := writeConfig(t, `
[sync]
intervall = "5m"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.intervall")
	assert.Contains(t, err.Error(), "sync.interval")
}

func TestLoad_UnknownKeyWithoutMatch(t *testing.T) {
	path := writeConfig(t, `
completely_unrelated_setting = true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_InvalidDurationRejected(t *testing.T) {
	path := writeConfig(t, `
[sync]
interval = "five minutes"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.interval")
}

func TestLoad_InvalidURLRejected(t *testing.T) {
	path := writeConfig(t, `
[scoring]
base_url = "ftp://example.com"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme must be http or https")
}

func TestLoad_NonPositiveGoalRejected(t *testing.T) {
	path := writeConfig(t, `
[goals]
stand_hours = 0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goals.stand_hours")
}

func TestLoadOrDefault_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	path := writeConfig(t, `
[scoring]
user_id = "from-file"

[provider]
healthd_url = "http://127.0.0.1:9001"
`)

	cliUser := "from-cli"
	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path, UserID: "from-env", HealthdURL: "http://127.0.0.1:9002"},
		CLIOverrides{UserID: &cliUser},
	)
	require.NoError(t, err)

	// CLI beats env beats file.
	assert.Equal(t, "from-cli", cfg.Scoring.UserID)
	// Env beats file when no CLI flag was given.
	assert.Equal(t, "http://127.0.0.1:9002", cfg.Provider.HealthdURL)
}

func TestResolve_CLIConfigPathBeatsEnv(t *testing.T) {
	envPath := writeConfig(t, `
[scoring]
user_id = "env-file"
`)
	cliPath := writeConfig(t, `
[scoring]
user_id = "cli-file"
`)

	cfg, err := Resolve(
		EnvOverrides{ConfigPath: envPath},
		CLIOverrides{ConfigPath: cliPath},
	)
	require.NoError(t, err)
	assert.Equal(t, "cli-file", cfg.Scoring.UserID)
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	assert.Positive(t, cfg.SyncInterval())
	assert.Positive(t, cfg.FetchDeadline())
	assert.Positive(t, cfg.BackfillDelay())
}

func TestTokenPath_ConfigOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.TokenFile = "/tmp/custom-token.json"

	assert.Equal(t, "/tmp/custom-token.json", cfg.TokenPath())
}
