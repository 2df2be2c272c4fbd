package service

import (
	"context"
	"os"
	"time"

	"wagate/internal/constants"
	"wagate/internal/retry"
	"wagate/internal/security"

	"github.com/sirupsen/logrus"
)

// SessionCredentialCleaner removes a tenant's on-disk credential
// directory after logout. Deletion is best effort: bounded retries with
// linearly increasing backoff, then a terminal give-up log. A leftover
// directory is harmless because a new pairing overwrites it.
type SessionCredentialCleaner struct {
	baseDir string
	logger  *logrus.Logger
	backoff *retry.Backoff
}

// NewSessionCredentialCleaner creates a cleaner rooted at the sessions
// base directory.
func NewSessionCredentialCleaner(baseDir string, logger *logrus.Logger) *SessionCredentialCleaner {
	cfg := retry.LinearBackoffConfig(
		time.Duration(constants.CredentialCleanupBackoffInitialMs)*time.Millisecond,
		constants.CredentialCleanupMaxAttempts,
	)
	return &SessionCredentialCleaner{
		baseDir: baseDir,
		logger:  logger,
		backoff: retry.NewBackoff(cfg),
	}
}

// Cleanup deletes the tenant's credential directory. All failures are
// absorbed; the caller's logout has already succeeded.
func (c *SessionCredentialCleaner) Cleanup(ctx context.Context, tenantID string) {
	dir, err := security.ValidateCredentialDir(c.baseDir, tenantID)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"error":     err.Error(),
		}).Warn("Refusing credential cleanup for unsafe path")
		return
	}

	err = c.backoff.Retry(ctx, func() error {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return nil
		}
		return os.RemoveAll(dir)
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"dir":       dir,
			"attempts":  constants.CredentialCleanupMaxAttempts,
			"error":     err.Error(),
		}).Warn("Giving up on credential cleanup")
		return
	}

	c.logger.WithField("tenant_id", tenantID).Info("Credential directory removed")
}
