package models

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int    `json:"port"`
	APIKey          string `json:"apiKey"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
	RateLimitRPS    int    `json:"rateLimitRps"`
	RateLimitBurst  int    `json:"rateLimitBurst"`
}

// UpstreamConfig configures the WhatsApp gateway the transport talks to.
type UpstreamConfig struct {
	BaseURL    string `json:"baseUrl"`
	APIKey     string `json:"apiKey"`
	TimeoutSec int    `json:"timeoutSec"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SessionsConfig configures session credential storage and pairing.
type SessionsConfig struct {
	BaseDir          string `json:"baseDir"`
	QRWaitTimeoutSec int    `json:"qrWaitTimeoutSec"`
}

// Config is the full application configuration, loaded from a JSON file
// with environment overrides applied on top.
type Config struct {
	Server               ServerConfig   `json:"server"`
	Upstream             UpstreamConfig `json:"upstream"`
	Database             DatabaseConfig `json:"database"`
	Sessions             SessionsConfig `json:"sessions"`
	RetentionDays        int            `json:"retentionDays"`
	CleanupIntervalHours int            `json:"cleanupIntervalHours"`
	LogLevel             string         `json:"logLevel"`
}
