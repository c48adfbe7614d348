package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage hirevox configuration",
	Long: `Display and manage hirevox configuration.

Configuration sources (in order of precedence):
1. Environment variables (HIREVOX_* prefix, plus ALIYUN_* credentials)
2. Project config (./hirevox.toml, searched up the directory tree)
3. Default values

Provider credentials come from the environment only and are never
written to disk or shown unmasked.

Examples:
  hirevox am show                   # Show current configuration
  hirevox am show --format json     # Show configuration in JSON format
  hirevox am get dialer.interval_seconds
  hirevox am set dialer.interval_seconds 8
  hirevox am validate`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, dialer.max_retries)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and persist it",
	Long: `Set a configuration value by dot notation and write the project
config file back, keeping a .bak of the previous version.

Credentials cannot be set this way; they live in the environment.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amFormat string

func init() {
	amShowCmd.Flags().StringVar(&amFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

// displayConfig is the redacted projection used by am show. The provider
// section renders masked credentials instead of the real ProviderConfig.
type displayConfig struct {
	Database am.DatabaseConfig `json:"database" toml:"database" yaml:"database"`
	Ingest   am.IngestConfig   `json:"ingest" toml:"ingest" yaml:"ingest"`
	Enrich   am.EnrichConfig   `json:"enrich" toml:"enrich" yaml:"enrich"`
	Dialer   am.DialerConfig   `json:"dialer" toml:"dialer" yaml:"dialer"`
	Provider map[string]string `json:"provider" toml:"provider" yaml:"provider"`
	TTS      am.TTSConfig      `json:"tts" toml:"tts" yaml:"tts"`
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	display := displayConfig{
		Database: cfg.Database,
		Ingest:   cfg.Ingest,
		Enrich:   cfg.Enrich,
		Dialer:   cfg.Dialer,
		Provider: cfg.RedactedProvider(),
		TTS:      cfg.TTS,
	}

	switch amFormat {
	case "json":
		data, err := json.MarshalIndent(display, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(display)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# hirevox configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(display)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# hirevox configuration\n%s", string(data))

	default:
		return errors.NewValidationError("unsupported format: %s (supported: toml, json, yaml)", amFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if isSensitiveKey(key) {
		return errors.New("credentials are not readable through am get")
	}

	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Println(am.Get(key))
	return nil
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if isSensitiveKey(key) {
		return errors.WithHint(
			errors.New("credentials cannot be persisted to the config file"),
			"export the ALIYUN_* environment variable instead")
	}

	path := am.ProjectConfigPath()
	if path == "" {
		path = "hirevox.toml"
	}

	v := viper.New()
	am.SetDefaults(v)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	}
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	v.Set(key, coerceValue(raw))

	var cfg am.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "rejected: resulting configuration is invalid")
	}

	if err := am.Save(&cfg, path); err != nil {
		return err
	}
	pterm.Success.Printfln("✓ %s = %s (saved to %s)", key, raw, path)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	pterm.Success.Println("✓ Configuration is valid")
	return nil
}

func isSensitiveKey(key string) bool {
	switch key {
	case "provider.access_key_id", "provider.access_key_secret":
		return true
	}
	return false
}

// coerceValue keeps numeric and boolean settings typed in the saved TOML.
func coerceValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
