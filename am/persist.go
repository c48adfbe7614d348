package am

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hirevox/hirevox/errors"
)

// persistedConfig mirrors Config with toml tags for round-trippable saves.
// Credentials are deliberately absent: they live in the environment only.
type persistedConfig struct {
	Database DatabaseConfig `toml:"database"`
	Ingest   IngestConfig   `toml:"ingest"`
	Enrich   EnrichConfig   `toml:"enrich"`
	Dialer   DialerConfig   `toml:"dialer"`
	TTS      TTSConfig      `toml:"tts"`
}

// Save writes the non-secret configuration to path as TOML, backing up any
// existing file first.
func Save(c *Config, path string) error {
	if err := createBackup(path); err != nil {
		return err
	}

	data, err := toml.Marshal(persistedConfig{
		Database: c.Database,
		Ingest:   c.Ingest,
		Enrich:   c.Enrich,
		Dialer:   c.Dialer,
		TTS:      c.TTS,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create config directory %s", dir)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}
	return nil
}

// createBackup copies the current config aside before modifying it.
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil // No file to back up
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".bak", content, 0644); err != nil {
		return errors.Wrap(err, "failed to write config backup")
	}
	return nil
}
