package models

import "time"

// ClientStatus is the durable status of a tenant in the clients table.
type ClientStatus string

const (
	ClientStatusReady        ClientStatus = "ready"
	ClientStatusDisconnected ClientStatus = "disconnected"
	ClientStatusLoggedOut    ClientStatus = "logged_out"
)

// RosterKind distinguishes group entities from private ones in the
// contacts and chats tables.
type RosterKind string

const (
	RosterKindGroup   RosterKind = "group"
	RosterKindPrivate RosterKind = "private"
)

// ClientRecord is one row in the clients table. One row per tenant ever
// seen; upserted, never hard-deleted.
type ClientRecord struct {
	ID            int          `json:"id"`
	TenantID      string       `json:"tenant_id"`
	Status        ClientStatus `json:"status"`
	StatusMessage string       `json:"status_message,omitempty"`
	PhoneNumber   string       `json:"phone_number,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ContactRecord is one row in the contacts table. ContactNumber is nil
// for group entities.
type ContactRecord struct {
	ID            int        `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Name          string     `json:"name"`
	ContactNumber *string    `json:"contact_number"`
	Kind          RosterKind `json:"kind"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ChatRecord is one row in the chats table, same shape as ContactRecord.
type ChatRecord struct {
	ID            int        `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Name          string     `json:"name"`
	ContactNumber *string    `json:"contact_number"`
	Kind          RosterKind `json:"kind"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MessageLogEntry is one row in the message_logs table. The logical
// identity is (tenant, peer, body): two messages with identical text
// from the same peer collapse to one row, matching the upstream
// gateway's dedup key.
type MessageLogEntry struct {
	ID         int       `json:"id"`
	TenantID   string    `json:"tenant_id"`
	PeerNumber string    `json:"peer_number"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// QRArtifact is one row in the qr_artifacts audit table.
type QRArtifact struct {
	ID        int       `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigError indicates invalid or missing configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
