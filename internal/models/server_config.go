package models

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment    string `json:"environment,omitzero" yaml:"environment"`
	LogLevel       string `json:"log_level,omitzero" yaml:"log_level"`
}

// RedisConfig holds the cache / idempotency store connection.
type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

// SchedulerConfig controls the in-process allotment sweep loop.
type SchedulerConfig struct {
	// SweepIntervalMinutes between cycle-reset sweeps; 0 defaults to 60.
	SweepIntervalMinutes int `json:"sweep_interval_minutes,omitzero" yaml:"sweep_interval_minutes,omitempty"`
}
