// Package am manages the hirevox core configuration.
package am

// Config represents the core hirevox configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest" toml:"ingest"`
	Enrich   EnrichConfig   `mapstructure:"enrich" toml:"enrich"`
	Dialer   DialerConfig   `mapstructure:"dialer" toml:"dialer"`
	Provider ProviderConfig `mapstructure:"provider" toml:"-"`
	TTS      TTSConfig      `mapstructure:"tts" toml:"tts"`
}

// DatabaseConfig configures the SQLite call-job ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// IngestConfig configures the candidate ingestion endpoint
type IngestConfig struct {
	Port            int     `mapstructure:"port" toml:"port"`                           // Listener port on 127.0.0.1 (default: 8790)
	MaxPayloadBytes int64   `mapstructure:"max_payload_bytes" toml:"max_payload_bytes"` // Request body cap (default: 64 KiB)
	EventsPerSecond float64 `mapstructure:"events_per_second" toml:"events_per_second"` // Inbound event rate bound (default: 50)
	EventBurst      int     `mapstructure:"event_burst" toml:"event_burst"`             // Rate limiter burst (default: 100)
}

// EnrichConfig configures the locality enrichment pipeline
type EnrichConfig struct {
	MaxRetries   int    `mapstructure:"max_retries" toml:"max_retries"`       // Retries for transient lookup failures (default: 3)
	RetryDelayMS int    `mapstructure:"retry_delay_ms" toml:"retry_delay_ms"` // Linear backoff unit (default: 500)
	TablePath    string `mapstructure:"table_path" toml:"table_path"`         // Optional external prefix table (CSV), empty = embedded table
}

// DialerConfig configures the call job scheduler and retry controller
type DialerConfig struct {
	IntervalSeconds        int  `mapstructure:"interval_seconds" toml:"interval_seconds"`                 // Default gap between dial starts (default: 5)
	MaxRetries             int  `mapstructure:"max_retries" toml:"max_retries"`                           // Retries per job on transient errors (default: 3)
	BackoffBaseMS          int  `mapstructure:"backoff_base_ms" toml:"backoff_base_ms"`                   // Exponential backoff base (default: 1000)
	BackoffCapMS           int  `mapstructure:"backoff_cap_ms" toml:"backoff_cap_ms"`                     // Backoff ceiling (default: 30000)
	AllowConcurrentBatches bool `mapstructure:"allow_concurrent_batches" toml:"allow_concurrent_batches"` // Off by default: one batch shares provider quota
}

// ProviderConfig configures the voice-call provider.
// Credentials are read-only process-wide configuration and are never logged.
type ProviderConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id" toml:"-"`
	AccessKeySecret string `mapstructure:"access_key_secret" toml:"-"`
	ShowNumber      string `mapstructure:"show_number" toml:"show_number"` // Caller-id shown to the callee
	TTSCode         string `mapstructure:"tts_code" toml:"tts_code"`       // Provider-side voice template code
	Region          string `mapstructure:"region" toml:"region"`           // Provider region (default: cn-hangzhou)
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// TTSConfig configures speech rendering
type TTSConfig struct {
	BaseURL        string `mapstructure:"base_url" toml:"base_url"`             // TTS service endpoint
	Voice          string `mapstructure:"voice" toml:"voice"`                   // Voice name (default: zh-CN-XiaoxiaoNeural)
	OutputDir      string `mapstructure:"output_dir" toml:"output_dir"`         // Where rendered audio files land
	TemplatesPath  string `mapstructure:"templates_path" toml:"templates_path"` // Optional YAML file with extra call-script templates
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}
