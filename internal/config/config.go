package config

import (
	"encoding/json"
	"fmt"
	"os"

	"wagate/internal/constants"
	"wagate/internal/models"
	"wagate/internal/security"

	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingUpstreamURL = models.ConfigError{Message: "missing upstream gateway URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingSessionsDir = models.ConfigError{Message: "missing sessions base directory"}
)

// envOverrides are applied on top of the JSON file. Secrets belong here,
// not in the file.
type envOverrides struct {
	UpstreamURL    string `envconfig:"UPSTREAM_URL"`
	UpstreamAPIKey string `envconfig:"UPSTREAM_API_KEY"`
	ServerAPIKey   string `envconfig:"API_KEY"`
	DBPath         string `envconfig:"DB_PATH"`
	SessionsDir    string `envconfig:"SESSIONS_DIR"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
}

// LoadConfig reads the JSON config file, applies WAGATE_* environment
// overrides, fills defaults, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	var env envOverrides
	if err := envconfig.Process("WAGATE", &env); err != nil {
		return err
	}

	if env.UpstreamURL != "" {
		c.Upstream.BaseURL = env.UpstreamURL
	}
	if env.UpstreamAPIKey != "" {
		c.Upstream.APIKey = env.UpstreamAPIKey
	}
	if env.ServerAPIKey != "" {
		c.Server.APIKey = env.ServerAPIKey
	}
	if env.DBPath != "" {
		c.Database.Path = env.DBPath
	}
	if env.SessionsDir != "" {
		c.Sessions.BaseDir = env.SessionsDir
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	return nil
}

func validate(c *models.Config) error {
	if c.Upstream.BaseURL == "" {
		return ErrMissingUpstreamURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Sessions.BaseDir == "" {
		return ErrMissingSessionsDir
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = constants.DefaultRateLimitRPS
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = constants.DefaultRateLimitBurst
	}
	if c.Upstream.TimeoutSec <= 0 {
		c.Upstream.TimeoutSec = constants.DefaultTransportTimeoutSec
	}
	if c.Sessions.QRWaitTimeoutSec <= 0 {
		c.Sessions.QRWaitTimeoutSec = constants.DefaultQRWaitTimeoutSec
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.CleanupIntervalHours <= 0 {
		c.CleanupIntervalHours = constants.CleanupSchedulerIntervalHours
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// validateSecurity enforces stricter rules in production deployments.
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("WAGATE_ENV") == "production"

	if isProduction {
		if c.Server.APIKey == "" {
			return models.ConfigError{Message: "server API key is required in production (set WAGATE_API_KEY environment variable)"}
		}
		if len(c.Server.APIKey) < 32 {
			return models.ConfigError{Message: "server API key must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.APIKey == "" {
		fmt.Fprintf(os.Stderr, "WARNING: server API key not set. Set WAGATE_API_KEY environment variable for security.\n")
	}

	return nil
}
