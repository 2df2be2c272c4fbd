package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"wagate/internal/migrations"
	"wagate/internal/models"
	"wagate/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the persistence gateway for the five gateway tables:
// clients, contacts, chats, message_logs, qr_artifacts. All writes are
// independent single-statement calls; idempotency for roster and message
// rows comes from conditional inserts backed by unique indexes.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// UpsertClient inserts or updates the durable record for a tenant.
// Rows are never deleted; only status, status_message, and phone_number
// mutate in place.
func (d *Database) UpsertClient(ctx context.Context, rec *models.ClientRecord) error {
	encryptedPhone, err := d.encryptor.EncryptIfEnabled(rec.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	encryptedStatusMsg, err := d.encryptor.EncryptIfEnabled(rec.StatusMessage)
	if err != nil {
		return fmt.Errorf("failed to encrypt status message: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpsertClientQuery,
			rec.TenantID, string(rec.Status), encryptedStatusMsg, encryptedPhone)
		return err
	}, "upsert client")
}

// UpdateClientStatus unconditionally updates the status for a tenant by
// its unique key. Callers treat a failure as log-only.
func (d *Database) UpdateClientStatus(ctx context.Context, tenantID string, status models.ClientStatus) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpdateClientStatusQuery, string(status), tenantID)
		return err
	}, "update client status")
}

// UpdateClientStatusMessage updates the presence status message for a tenant.
func (d *Database) UpdateClientStatusMessage(ctx context.Context, tenantID, statusMessage string) error {
	encrypted, err := d.encryptor.EncryptIfEnabled(statusMessage)
	if err != nil {
		return fmt.Errorf("failed to encrypt status message: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpdateClientStatusMessageQuery, encrypted, tenantID)
		return err
	}, "update client status message")
}

// GetClient retrieves the durable record for a tenant, or nil when the
// tenant has never been seen.
func (d *Database) GetClient(ctx context.Context, tenantID string) (*models.ClientRecord, error) {
	rec := &models.ClientRecord{}
	var status string
	var statusMessage, phoneNumber sql.NullString

	err := d.db.QueryRowContext(ctx, SelectClientByTenantQuery, tenantID).Scan(
		&rec.ID, &rec.TenantID, &status, &statusMessage, &phoneNumber,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	rec.Status = models.ClientStatus(status)

	if statusMessage.Valid {
		rec.StatusMessage, err = d.encryptor.DecryptIfEnabled(statusMessage.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt status message: %w", err)
		}
	}
	if phoneNumber.Valid {
		rec.PhoneNumber, err = d.encryptor.DecryptIfEnabled(phoneNumber.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
		}
	}

	return rec, nil
}

// InsertContactIfAbsent persists a contact unless an identical
// (tenant, name, number, kind) row already exists. Returns whether a
// row was actually inserted.
func (d *Database) InsertContactIfAbsent(ctx context.Context, rec *models.ContactRecord) (bool, error) {
	return d.insertIfAbsent(ctx, InsertContactIfAbsentQuery, "insert contact",
		rec.TenantID, rec.Name, rec.ContactNumber, string(rec.Kind))
}

// InsertChatIfAbsent persists a chat unless an identical row already exists.
func (d *Database) InsertChatIfAbsent(ctx context.Context, rec *models.ChatRecord) (bool, error) {
	return d.insertIfAbsent(ctx, InsertChatIfAbsentQuery, "insert chat",
		rec.TenantID, rec.Name, rec.ContactNumber, string(rec.Kind))
}

// InsertMessageLogIfAbsent appends a message log entry unless a row with
// the same (tenant, peer, body) key exists. The key deliberately includes
// the body, matching the upstream gateway's dedup behavior.
func (d *Database) InsertMessageLogIfAbsent(ctx context.Context, entry *models.MessageLogEntry) (bool, error) {
	return d.insertIfAbsent(ctx, InsertMessageLogIfAbsentQuery, "insert message log",
		entry.TenantID, entry.PeerNumber, entry.Body)
}

func (d *Database) insertIfAbsent(ctx context.Context, query, operation string, args ...interface{}) (bool, error) {
	var inserted bool
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		inserted = rows > 0
		return nil
	}, operation)
	return inserted, err
}

// SaveQRArtifact appends a pairing QR payload for audit.
func (d *Database) SaveQRArtifact(ctx context.Context, tenantID, payload string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertQRArtifactQuery, tenantID, payload)
		return err
	}, "save qr artifact")
}

// GetLatestQRArtifact returns the most recent QR payload for a tenant,
// or nil when none was ever recorded.
func (d *Database) GetLatestQRArtifact(ctx context.Context, tenantID string) (*models.QRArtifact, error) {
	artifact := &models.QRArtifact{}

	err := d.db.QueryRowContext(ctx, SelectLatestQRArtifactQuery, tenantID).Scan(
		&artifact.ID, &artifact.TenantID, &artifact.Payload, &artifact.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qr artifact: %w", err)
	}

	return artifact, nil
}

// CleanupOldQRArtifacts removes QR audit rows older than the retention period.
func (d *Database) CleanupOldQRArtifacts(ctx context.Context, retentionDays int) error {
	_, err := d.db.ExecContext(ctx, DeleteOldQRArtifactsQuery, retentionDays)
	if err != nil {
		return fmt.Errorf("failed to cleanup old qr artifacts: %w", err)
	}
	return nil
}

// CleanupOldMessageLogs removes message log rows older than the retention period.
func (d *Database) CleanupOldMessageLogs(ctx context.Context, retentionDays int) error {
	_, err := d.db.ExecContext(ctx, DeleteOldMessageLogsQuery, retentionDays)
	if err != nil {
		return fmt.Errorf("failed to cleanup old message logs: %w", err)
	}
	return nil
}
