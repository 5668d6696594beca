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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
alerting:
  thresholds:
    gas: { warning: 800, danger: 1600, critical: 2400 }
  mute_options: ["5m", "10m"]
backend:
  debounce_window: "150ms"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 800.0, cfg.Alerting.Thresholds.Gas.Warning)
	assert.Equal(t, 50.0, cfg.Alerting.Thresholds.Temperature.Danger, "untouched bands keep defaults")
	assert.Equal(t, []time.Duration{5 * time.Minute, 10 * time.Minute}, cfg.Alerting.MuteOptions)
	assert.Equal(t, 150*time.Millisecond, cfg.Backend.DebounceWindow)
	assert.Equal(t, 60*time.Second, cfg.Alerting.CriticalSound)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ALERT_PORT", "7070")
	t.Setenv("ALERT_LOG_LEVEL", "debug")
	cfg, err := Load(writeConfig(t, "port: \"9090\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"descending thresholds": "alerting:\n  thresholds:\n    humidity: { warning: 90, danger: 80, critical: 95 }\n",
		"bad log level":         "log:\n  level: loud\n",
		"mqtt without broker":   "mqtt:\n  enabled: true\n  broker: \"\"\n",
		"bad backend url":       "backend:\n  base_url: \"not a url\"\n",
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestValidate_Nil(t *testing.T) {
	var c *Config
	assert.ErrorIs(t, c.Validate(), errNoConfig)
}
