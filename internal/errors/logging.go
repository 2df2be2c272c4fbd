package errors

import (
	"github.com/sirupsen/logrus"
)

// LogError logs an error on the given logger with structured context
// taken from the AppError, if it is one.
func LogError(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	entry := entryFor(logger, err)
	for _, field := range fields {
		entry = entry.WithFields(field)
	}
	entry.Error(message)
}

// LogWarn logs a warning with structured context.
func LogWarn(logger *logrus.Logger, err error, message string, fields ...logrus.Fields) {
	entry := entryFor(logger, err)
	for _, field := range fields {
		entry = entry.WithFields(field)
	}
	entry.Warn(message)
}

func entryFor(logger *logrus.Logger, err error) *logrus.Entry {
	entry := logger.WithError(err)

	if appErr, ok := err.(*AppError); ok {
		entry = entry.WithFields(logrus.Fields{
			"error_code": appErr.Code,
			"retryable":  appErr.Retryable,
		})
		for k, v := range appErr.Context {
			entry = entry.WithField(k, v)
		}
	}

	return entry
}
