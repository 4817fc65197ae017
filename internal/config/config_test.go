package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/config"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sensorpoll.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
source = "host"
interval = 10
timeout = 3
cooldown = 120
alert_mode = "all"
log_level = "debug"
alert_log = "/path/to/alerts.db"
nats_url = "nats://127.0.0.1:4222"

[thresholds]
cpu = ">90"
memory = 85
disk = ">95"
`)
	t.Setenv("SENSORPOLL_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "host", cfg.Source)
	assert.Equal(t, 10, cfg.Interval)
	assert.Equal(t, 3, cfg.Timeout)
	assert.Equal(t, 120, cfg.Cooldown)
	assert.Equal(t, "all", cfg.AlertMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/path/to/alerts.db", cfg.AlertLog)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, map[string]string{"cpu": ">90", "memory": "85", "disk": ">95"}, cfg.Thresholds)

	s, err := cfg.Settings()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, s.Interval)
	assert.Equal(t, 2*time.Minute, s.Alerts.Cooldown)
	assert.Equal(t, alert.AllBreaches, s.Alerts.Mode)
	assert.Equal(t, []alert.Threshold{
		{Metric: "cpu", Limit: 90, Direction: alert.Above},
		{Metric: "memory", Limit: 85, Direction: alert.Above},
		{Metric: "disk", Limit: 95, Direction: alert.Above},
	}, s.Alerts.Thresholds)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", filepath.Join(t.TempDir(), "none.toml"))

	_, err := config.Load(nil)
	require.Error(t, err, "an explicit config file must exist")

	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, ""))

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, config.SourceHTTP, cfg.Source)
	assert.Equal(t, config.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "/data", cfg.Path)
	assert.Equal(t, 0, cfg.Interval)
	assert.Equal(t, 5, cfg.Timeout)
	assert.Equal(t, 300, cfg.Cooldown)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)

	s, err := cfg.Settings()
	require.NoError(t, err)

	assert.Equal(t, time.Second, s.Interval)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, 300*time.Second, s.Alerts.Cooldown)
	assert.Equal(t, alert.FirstBreach, s.Alerts.Mode)
	assert.Equal(t, alert.DefaultThresholds(), s.Alerts.Thresholds)
}

func TestSourceDefaultIntervals(t *testing.T) {
	assert.Equal(t, time.Second, config.DefaultInterval(config.SourceHTTP))
	assert.Equal(t, 5*time.Second, config.DefaultInterval(config.SourceHost))
	assert.Equal(t, 2*time.Second, config.DefaultInterval(config.SourceGPU))
	assert.Len(t, config.DefaultThresholds(config.SourceGPU), 3)
}

func TestFlagsOverrideFileAndEnv(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, `
endpoint = "10.0.0.5"
interval = 4
`))
	t.Setenv("SENSORPOLL_TIMEOUT", "9")

	cfg, err := config.Load([]string{"--interval", "2", "--log-level", "info"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Endpoint)
	assert.Equal(t, 2, cfg.Interval)
	assert.Equal(t, 9, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestVerboseAndDebugFlags(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, ""))

	cfg, err := config.Load([]string{"--verbose"})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)

	cfg, err = config.Load([]string{"--debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, `
This is not a valid TOML file
`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, `log_level = "invalid"`))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidLogLevel, errors.CodeOf(err))
}

func TestUnknownFlag(t *testing.T) {
	t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, ""))

	_, err := config.Load([]string{"--bogus"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestSettingsRejectInvalidValues(t *testing.T) {
	tests := map[string]string{
		"source":    `source = "serial"`,
		"threshold": "[thresholds]\ncpu = \"lots\"",
		"mode":      `alert_mode = "some"`,
		"interval":  `interval = -1`,
		"endpoint":  `endpoint = ""`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SENSORPOLL_CONFIG", writeConfig(t, content))

			cfg, err := config.Load(nil)
			require.NoError(t, err)

			_, err = cfg.Settings()
			require.Error(t, err)
			assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
		})
	}
}
