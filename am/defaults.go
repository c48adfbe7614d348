package am

import (
	"github.com/spf13/viper"
)

// Default ingestion endpoint port. Above the privileged range, unlikely
// to collide with common dev servers.
const DefaultIngestPort = 8790

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "hirevox.db")

	// Ingestion endpoint defaults
	v.SetDefault("ingest.port", DefaultIngestPort)
	v.SetDefault("ingest.max_payload_bytes", 64*1024)
	v.SetDefault("ingest.events_per_second", 50.0)
	v.SetDefault("ingest.event_burst", 100)

	// Enrichment pipeline defaults
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.retry_delay_ms", 500)

	// Dialer defaults
	v.SetDefault("dialer.interval_seconds", 5) // voip batch default pacing
	v.SetDefault("dialer.max_retries", 3)
	v.SetDefault("dialer.backoff_base_ms", 1000)
	v.SetDefault("dialer.backoff_cap_ms", 30000)
	v.SetDefault("dialer.allow_concurrent_batches", false)

	// Provider defaults
	v.SetDefault("provider.region", "cn-hangzhou")
	v.SetDefault("provider.timeout_seconds", 30)

	// TTS defaults
	v.SetDefault("tts.voice", "zh-CN-XiaoxiaoNeural")
	v.SetDefault("tts.output_dir", ".")
	v.SetDefault("tts.timeout_seconds", 60)
}
