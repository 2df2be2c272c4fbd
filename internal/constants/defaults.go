package constants

// Default retry configuration values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultRetentionDays         = 30
	DefaultServerPort            = 8082
	DefaultDatabaseRetryAttempts = 3
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec         = 30
	DefaultGracefulShutdownSec    = 30
	DefaultQRWaitTimeoutSec       = 120
	DefaultTransportTimeoutSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	CleanupSchedulerIntervalHours = 24
)

// Credential cleanup: bounded retries with linearly increasing backoff.
const (
	CredentialCleanupMaxAttempts      = 5
	CredentialCleanupBackoffInitialMs = 200
)

// Validation bounds
const (
	MinPhoneNumberLength = 6
	MaxPhoneNumberLength = 20
	MaxTenantIDLength    = 64
	MaxStatusMessageLen  = 512
	MaxMessageBodyLen    = 65536
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// HTTP limits
const (
	MaxRequestBodyBytes    = 10 << 20 // media uploads arrive base64-encoded in JSON
	ServerErrorChannelSize = 1
	DefaultRateLimitRPS    = 10
	DefaultRateLimitBurst  = 20
)
