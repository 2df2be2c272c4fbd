package database

// Client queries
const (
	UpsertClientQuery = `
		INSERT INTO clients (tenant_id, status, status_message, phone_number)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			status = excluded.status,
			status_message = excluded.status_message,
			phone_number = excluded.phone_number,
			updated_at = CURRENT_TIMESTAMP
	`

	UpdateClientStatusQuery = `
		UPDATE clients
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?
	`

	UpdateClientStatusMessageQuery = `
		UPDATE clients
		SET status_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?
	`

	SelectClientByTenantQuery = `
		SELECT id, tenant_id, status, status_message, phone_number, created_at, updated_at
		FROM clients
		WHERE tenant_id = ?
	`
)

// Roster queries. The conditional inserts rely on the unique indexes in
// the schema: a duplicate logical key is ignored in a single statement,
// with no check-then-insert round trip.
const (
	InsertContactIfAbsentQuery = `
		INSERT OR IGNORE INTO contacts (tenant_id, name, contact_number, kind)
		VALUES (?, ?, ?, ?)
	`

	InsertChatIfAbsentQuery = `
		INSERT OR IGNORE INTO chats (tenant_id, name, contact_number, kind)
		VALUES (?, ?, ?, ?)
	`
)

// Message log queries
const (
	InsertMessageLogIfAbsentQuery = `
		INSERT OR IGNORE INTO message_logs (tenant_id, peer_number, body)
		VALUES (?, ?, ?)
	`

	DeleteOldMessageLogsQuery = `
		DELETE FROM message_logs
		WHERE sent_at < datetime('now', '-' || ? || ' days')
	`
)

// QR artifact queries
const (
	InsertQRArtifactQuery = `
		INSERT INTO qr_artifacts (tenant_id, payload)
		VALUES (?, ?)
	`

	SelectLatestQRArtifactQuery = `
		SELECT id, tenant_id, payload, created_at
		FROM qr_artifacts
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	DeleteOldQRArtifactsQuery = `
		DELETE FROM qr_artifacts
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`
)
