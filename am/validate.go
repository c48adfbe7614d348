package am

import (
	"github.com/hirevox/hirevox/errors"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Ingest.Port <= 0 || c.Ingest.Port > 65535 {
		return errors.Newf("ingest.port must be in 1..65535, got %d", c.Ingest.Port)
	}
	if c.Ingest.MaxPayloadBytes <= 0 {
		return errors.Newf("ingest.max_payload_bytes must be positive, got %d", c.Ingest.MaxPayloadBytes)
	}
	if c.Dialer.IntervalSeconds < 0 {
		return errors.Newf("dialer.interval_seconds must not be negative, got %d", c.Dialer.IntervalSeconds)
	}
	if c.Dialer.MaxRetries < 0 {
		return errors.Newf("dialer.max_retries must not be negative, got %d", c.Dialer.MaxRetries)
	}
	if c.Dialer.BackoffBaseMS <= 0 {
		return errors.Newf("dialer.backoff_base_ms must be positive, got %d", c.Dialer.BackoffBaseMS)
	}
	if c.Dialer.BackoffCapMS < c.Dialer.BackoffBaseMS {
		return errors.Newf("dialer.backoff_cap_ms (%d) must be >= dialer.backoff_base_ms (%d)",
			c.Dialer.BackoffCapMS, c.Dialer.BackoffBaseMS)
	}
	if c.Enrich.MaxRetries < 0 {
		return errors.Newf("enrich.max_retries must not be negative, got %d", c.Enrich.MaxRetries)
	}
	return nil
}

// ValidateProvider checks that the voice provider is fully configured.
// Called by the operations that need provider credentials, not at startup,
// so lookup-only workflows run without any provider setup.
func (c *Config) ValidateProvider() error {
	return c.Provider.ValidateProvider()
}

// ValidateProvider checks provider credentials and caller identity.
func (p *ProviderConfig) ValidateProvider() error {
	if p.AccessKeyID == "" || p.AccessKeySecret == "" {
		return errors.WithHint(
			errors.NewConfigurationError("provider credentials are not configured"),
			"set ALIYUN_ACCESS_KEY_ID and ALIYUN_ACCESS_KEY_SECRET")
	}
	if p.ShowNumber == "" {
		return errors.WithHint(
			errors.NewConfigurationError("provider.show_number is not configured"),
			"set ALIYUN_VOICE_SHOW_NUMBER")
	}
	return nil
}

// mask hides all but a short prefix of a credential for display.
func mask(s string) string {
	if s == "" {
		return "[unset]"
	}
	return "***"
}

// RedactedProvider returns provider settings safe for display and logging.
func (c *Config) RedactedProvider() map[string]string {
	showNumber := c.Provider.ShowNumber
	if showNumber == "" {
		showNumber = "[unset]"
	}
	ttsCode := c.Provider.TTSCode
	if ttsCode == "" {
		ttsCode = "[unset]"
	}
	return map[string]string{
		"access_key_id":     mask(c.Provider.AccessKeyID),
		"access_key_secret": mask(c.Provider.AccessKeySecret),
		"show_number":       showNumber,
		"tts_code":          ttsCode,
		"region":            c.Provider.Region,
	}
}
