package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultIngestPort, cfg.Ingest.Port)
	assert.Equal(t, 5, cfg.Dialer.IntervalSeconds)
	assert.Equal(t, 3, cfg.Dialer.MaxRetries)
	assert.Equal(t, "zh-CN-XiaoxiaoNeural", cfg.TTS.Voice)
	assert.Equal(t, "cn-hangzhou", cfg.Provider.Region)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Ingest.Port = 0 }},
		{"huge port", func(c *Config) { c.Ingest.Port = 70000 }},
		{"zero payload cap", func(c *Config) { c.Ingest.MaxPayloadBytes = 0 }},
		{"negative interval", func(c *Config) { c.Dialer.IntervalSeconds = -1 }},
		{"negative retries", func(c *Config) { c.Dialer.MaxRetries = -1 }},
		{"cap below base", func(c *Config) { c.Dialer.BackoffCapMS = 1; c.Dialer.BackoffBaseMS = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProvider(t *testing.T) {
	cfg := defaultConfig(t)
	assert.Error(t, cfg.ValidateProvider(), "empty credentials must fail")

	cfg.Provider.AccessKeyID = "LTAI_test"
	cfg.Provider.AccessKeySecret = "secret"
	assert.Error(t, cfg.ValidateProvider(), "missing show number must fail")

	cfg.Provider.ShowNumber = "057100000000"
	assert.NoError(t, cfg.ValidateProvider())
}

func TestRedactedProviderNeverExposesSecrets(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Provider.AccessKeyID = "LTAI_very_secret_key"
	cfg.Provider.AccessKeySecret = "super_secret_value"
	cfg.Provider.ShowNumber = "057100000000"

	redacted := cfg.RedactedProvider()
	for k, v := range redacted {
		assert.NotContains(t, v, "secret", "field %s leaks secret material", k)
	}
	assert.Equal(t, "***", redacted["access_key_id"])
	assert.Equal(t, "***", redacted["access_key_secret"])
	assert.Equal(t, "057100000000", redacted["show_number"])
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hirevox.toml")

	cfg := defaultConfig(t)
	cfg.Dialer.IntervalSeconds = 12
	cfg.TTS.Voice = "zh-CN-YunxiNeural"
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Dialer.IntervalSeconds)
	assert.Equal(t, "zh-CN-YunxiNeural", loaded.TTS.Voice)
	// Defaults still fill sections absent from the file
	assert.Equal(t, "cn-hangzhou", loaded.Provider.Region)
}

func TestSaveBacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hirevox.toml")

	cfg := defaultConfig(t)
	require.NoError(t, Save(cfg, path))

	cfg.Dialer.IntervalSeconds = 30
	require.NoError(t, Save(cfg, path))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "interval_seconds = 5")
}

func TestSaveOmitsCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hirevox.toml")

	cfg := defaultConfig(t)
	cfg.Provider.AccessKeySecret = "do-not-write-me"
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "do-not-write-me")
}
