package types

import (
	"context"
)

// Transport is the capability surface over the messaging network for one
// tenant. Initialize never blocks on the connection attempt; commands
// other than Initialize and Logout are only valid once the stream has
// delivered a ready event.
type Transport interface {
	Initialize(ctx context.Context) (<-chan Event, error)
	SendText(ctx context.Context, chatID, body string) (*SendResult, error)
	SendMedia(ctx context.Context, chatID string, data []byte, mimeType, caption string) (*SendResult, error)
	SetStatus(ctx context.Context, text string) error
	Logout(ctx context.Context) error
	ListContacts(ctx context.Context) ([]RosterEntry, error)
	ListChats(ctx context.Context) ([]RosterEntry, error)
}

// TransportFactory builds a Transport bound to one tenant.
type TransportFactory func(tenantID string) Transport
