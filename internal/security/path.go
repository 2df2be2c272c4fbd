package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe and doesn't contain directory traversal attempts
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateCredentialDir validates that a tenant credential directory
// resolves inside the configured sessions base directory. Tenant IDs come
// from request input, so the joined path must not escape the base.
func ValidateCredentialDir(baseDir, tenantID string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("sessions base directory cannot be empty")
	}
	if tenantID == "" {
		return "", fmt.Errorf("tenant ID cannot be empty")
	}
	if strings.ContainsAny(tenantID, "/\\") || strings.Contains(tenantID, "..") {
		return "", fmt.Errorf("tenant ID contains path separators: %s", tenantID)
	}

	fullPath := filepath.Clean(filepath.Join(baseDir, tenantID))
	cleanBase := filepath.Clean(baseDir)

	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("credential path escapes base directory: %s", tenantID)
	}

	return fullPath, nil
}
