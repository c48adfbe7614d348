package am

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the hirevox core configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("HIREVOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	// Project config overrides defaults, env vars override both
	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		// Missing or unreadable project config is not fatal
		_ = v.MergeInConfig()
	}

	viperInstance = v
	return v
}

// BindSensitiveEnvVars explicitly binds credentials to their conventional
// environment variables so existing provider setups keep working.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("provider.access_key_id", "ALIYUN_ACCESS_KEY_ID")
	v.BindEnv("provider.access_key_secret", "ALIYUN_ACCESS_KEY_SECRET")
	v.BindEnv("provider.show_number", "ALIYUN_VOICE_SHOW_NUMBER")
	v.BindEnv("provider.tts_code", "ALIYUN_VOICE_TTS_CODE")
}

// GetViper returns the shared Viper instance backing Load.
func GetViper() *viper.Viper {
	return initViper()
}

// Get returns a configuration value by dot-notation key.
func Get(key string) interface{} {
	return initViper().Get(key)
}

// ProjectConfigPath returns the active project config file, if any.
func ProjectConfigPath() string {
	return findProjectConfig()
}

// findProjectConfig searches for hirevox.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "hirevox.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
