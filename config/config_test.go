package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv(DefaultTokenEnv, "secret-token")
	path := writeConfig(t, `
stations:
  - name: Berlin-Wannsee
    latitude: 52.422206
    longitude: 13.1810253
    equipment_searches: ["Gleis 1/2", "Gleis 3/4"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, "secret-token", cfg.API.Token)
	assert.Equal(t, 500, cfg.API.AccuracyMeters)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0.4, cfg.Matcher.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.Scraper.Interval)
	assert.Equal(t, 5, cfg.Display.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Display.BaseDelay())
	assert.Equal(t, "elstatus.jpg", cfg.Display.OutputPath)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, []string{"worker_pool.size is not set or invalid; defaulting to 1"}, cfg.Warnings())
	assert.Equal(t, "smtp", cfg.Email.Transport)

	require.Len(t, cfg.Stations, 1)
	assert.Equal(t, []string{"Gleis 1/2", "Gleis 3/4"}, cfg.Stations[0].EquipmentSearches)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesAndEnv(t *testing.T) {
	t.Setenv("MY_TOKEN", "abc")
	t.Setenv("SMTP_PW", "hunter2")
	path := writeConfig(t, `
api:
  token_env: MY_TOKEN
  timeout_seconds: 5
matcher:
  threshold: 0.6
database:
  path: subscriptions.db
email:
  smtp:
    user: elstatus@example.org
    password_env: SMTP_PW
stations:
  - latitude: 1
    longitude: 2
    equipment_searches: ["Gleis 5"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.API.Token)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0.6, cfg.Matcher.Threshold)
	assert.Equal(t, "subscriptions.db", cfg.Database.Path)
	assert.Equal(t, "hunter2", cfg.Email.SMTP.Password)
	assert.Equal(t, "ElStatus <elstatus@example.org>", cfg.Email.From)
}

func TestLoad_NoWarningsForValidValues(t *testing.T) {
	path := writeConfig(t, `
worker_pool:
  size: 3
stations:
  - latitude: 1
    longitude: 2
    equipment_searches: ["Gleis 5"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.Empty(t, cfg.Warnings())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv(DefaultTokenEnv, "")
	path := writeConfig(t, `
stations:
  - name: Empty
    latitude: 1
    longitude: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHEELMAP_TOKEN is not set")
	assert.Contains(t, err.Error(), "station 0 (Empty) has no equipment_searches")
}

func TestValidate_NoStations(t *testing.T) {
	cfg := &Config{API: APIConfig{Token: "x", TokenEnv: DefaultTokenEnv}}

	assert.EqualError(t, cfg.Validate(), "no stations configured")
}
