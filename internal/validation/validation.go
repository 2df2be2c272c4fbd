package validation

import (
	"fmt"
	"strings"
	"unicode"

	"wagate/internal/constants"
	"wagate/internal/errors"
)

// ValidateTenantID validates tenant identifier format and length.
// Tenant IDs become registry keys and credential directory names, so the
// character set is restricted.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return errors.NewBadRequestError("tenantId", "tenant ID cannot be empty")
	}

	if len(tenantID) > constants.MaxTenantIDLength {
		return errors.NewBadRequestError("tenantId",
			fmt.Sprintf("tenant ID too long (max %d characters)", constants.MaxTenantIDLength))
	}

	for _, char := range tenantID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.NewBadRequestError("tenantId",
				"tenant ID must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidatePhoneNumber validates phone number format and length.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.NewBadRequestError("to", "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")
	cleaned = strings.TrimSuffix(cleaned, "@c.us")
	cleaned = strings.TrimSuffix(cleaned, "@g.us")

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.NewBadRequestError("to",
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}

	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.NewBadRequestError("to",
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.NewBadRequestError("to", "phone number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageBody validates an outbound message body.
func ValidateMessageBody(body string) error {
	if body == "" {
		return errors.NewBadRequestError("body", "message body cannot be empty")
	}

	if len(body) > constants.MaxMessageBodyLen {
		return errors.NewBadRequestError("body",
			fmt.Sprintf("message body too long (max %d bytes)", constants.MaxMessageBodyLen))
	}

	return nil
}

// ValidateStatusMessage validates a presence status message.
func ValidateStatusMessage(text string) error {
	if text == "" {
		return errors.NewBadRequestError("text", "status message cannot be empty")
	}

	if len(text) > constants.MaxStatusMessageLen {
		return errors.NewBadRequestError("text",
			fmt.Sprintf("status message too long (max %d characters)", constants.MaxStatusMessageLen))
	}

	return nil
}

// NormalizePeerNumber converts a user-supplied phone number into the bare
// digits form used as the message-log key and the transport chat ID base.
// A leading "+" is stripped, mirroring the upstream gateway.
func NormalizePeerNumber(phone string) string {
	cleaned := strings.TrimPrefix(phone, "+")
	cleaned = strings.TrimSuffix(cleaned, "@c.us")
	return cleaned
}
