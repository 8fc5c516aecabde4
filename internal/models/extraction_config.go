package models

import "time"

// ExtractionProvider selects which vision-language model backend performs
// table extraction.
type ExtractionProvider string

const (
	ProviderOpenAI    ExtractionProvider = "openai"
	ProviderAnthropic ExtractionProvider = "anthropic"
	ProviderGemini    ExtractionProvider = "gemini"
)

type ExtractionConfig struct {
	Provider ExtractionProvider `json:"provider" yaml:"provider"`
	Model    string             `json:"model" yaml:"model"`
	APIKey   string             `json:"api_key" yaml:"api_key"`
	BaseURL  string             `json:"base_url,omitzero" yaml:"base_url,omitempty"`
	// TimeoutMs bounds a single extraction call; 0 uses the SDK default.
	TimeoutMs int `json:"timeout_ms,omitzero" yaml:"timeout_ms,omitempty"`
	// CacheTTLHours controls the redis result cache; 0 disables caching.
	CacheTTLHours int `json:"cache_ttl_hours,omitzero" yaml:"cache_ttl_hours,omitempty"`
}

// CacheTTL converts the configured hours into a duration. Zero means the
// result cache is disabled.
func (c *ExtractionConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// Timeout converts the configured milliseconds into a duration.
func (c *ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
