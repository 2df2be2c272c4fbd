package types

import (
	"errors"
	"time"
)

// ErrPeerUnregistered reports a send to a number with no account on the
// messaging network. The upstream API signals this with a 422.
var ErrPeerUnregistered = errors.New("peer not registered")

// EventKind tags a transport event for dispatch.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventMessage       EventKind = "message"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
)

// Terminal reports whether no further events follow this kind.
func (k EventKind) Terminal() bool {
	return k == EventAuthFailure || k == EventDisconnected
}

// Event is one occurrence on a session's transport event stream. Events
// are delivered in emission order; the stream closes after a terminal
// event.
type Event struct {
	Kind        EventKind
	QR          string // base64 PNG payload, qr events only
	PhoneNumber string // set on ready
	Message     *InboundMessage
	Reason      string // auth_failure / disconnected detail
}

// InboundMessage is a message received on a tenant's account.
type InboundMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// RosterEntry is one contact or chat enumerated from the messaging
// network. Number is empty for group entities.
type RosterEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Number  string `json:"number"`
	IsGroup bool   `json:"isGroup"`
}

// SendResult is the acknowledgement for an outbound message.
type SendResult struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// ClientConfig configures a per-tenant transport client.
type ClientConfig struct {
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	TenantID string        `json:"tenant_id"`
	Timeout  time.Duration `json:"timeout"`
}

// APIErrorResponse is the error body returned by the gateway API.
type APIErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
