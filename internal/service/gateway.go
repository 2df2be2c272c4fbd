package service

import (
	"context"
	"encoding/base64"
	"time"

	"wagate/internal/errors"
	"wagate/internal/models"
	"wagate/internal/validation"
	"wagate/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// GatewayStore is the full persistence surface the gateway facade needs.
type GatewayStore interface {
	SessionStore
	RosterStore
	GetClient(ctx context.Context, tenantID string) (*models.ClientRecord, error)
}

// SessionStatus is the live status view of a tenant's session.
type SessionStatus struct {
	TenantID    string       `json:"tenantId"`
	State       SessionState `json:"state"`
	PhoneNumber string       `json:"phoneNumber,omitempty"`
}

// Gateway is the facade the HTTP layer talks to. It owns the registry
// and translates tenant-scoped requests into session operations.
type Gateway struct {
	registry *Registry
	store    GatewayStore
	factory  types.TransportFactory
	syncer   RosterSyncer
	cleaner  CredentialCleaner
	logger   *logrus.Logger
	qrWait   time.Duration
}

// NewGateway wires the gateway facade.
func NewGateway(store GatewayStore, factory types.TransportFactory, syncer RosterSyncer, cleaner CredentialCleaner, qrWait time.Duration, logger *logrus.Logger) *Gateway {
	return &Gateway{
		registry: NewRegistry(),
		store:    store,
		factory:  factory,
		syncer:   syncer,
		cleaner:  cleaner,
		logger:   logger,
		qrWait:   qrWait,
	}
}

// Registry exposes the session registry for introspection.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// InitializeSession starts a new session for the tenant and blocks until
// the first pairing payload arrives. Returns the QR code as PNG bytes.
// The registry slot is claimed before the transport connects, so two
// racing initializations of the same tenant cannot both start.
func (g *Gateway) InitializeSession(ctx context.Context, tenantID string) ([]byte, error) {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	transport := g.factory(tenantID)
	session := NewSession(tenantID, transport, g.store, g.registry, g.syncer, g.cleaner, g.logger)

	if err := g.registry.Register(tenantID, session); err != nil {
		return nil, err
	}

	if err := session.Start(ctx); err != nil {
		g.registry.Remove(tenantID)
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.qrWait)
	defer cancel()

	payload, err := session.WaitForQR(waitCtx)
	if err != nil {
		// Auth failures and disconnects already released the slot; a
		// timeout has not.
		if errors.GetCode(err) == errors.ErrCodeTimeout {
			session.Close()
		}
		return nil, err
	}

	png, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "malformed pairing payload")
	}

	g.logger.WithField("tenant_id", tenantID).Info("Pairing code delivered")
	return png, nil
}

// GetStatus reports the live state of a tenant's session. Tenants with
// no live session get NOT_FOUND regardless of their durable history.
func (g *Gateway) GetStatus(tenantID string) (*SessionStatus, error) {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	session, err := g.registry.Lookup(tenantID)
	if err != nil {
		return nil, err
	}

	return &SessionStatus{
		TenantID:    tenantID,
		State:       session.State(),
		PhoneNumber: session.PhoneNumber(),
	}, nil
}

// SendMessage sends a text message from the tenant's account.
func (g *Gateway) SendMessage(ctx context.Context, tenantID, to, body string) (*types.SendResult, error) {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhoneNumber(to); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageBody(body); err != nil {
		return nil, err
	}

	session, err := g.registry.Lookup(tenantID)
	if err != nil {
		return nil, err
	}

	return session.SendText(ctx, validation.NormalizePeerNumber(to), body)
}

// SendMedia sends a media message from the tenant's account.
func (g *Gateway) SendMedia(ctx context.Context, tenantID, to string, data []byte, mimeType, caption string) (*types.SendResult, error) {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhoneNumber(to); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.NewBadRequestError("file", "media payload cannot be empty")
	}
	if mimeType == "" {
		return nil, errors.NewBadRequestError("mimetype", "media mime type cannot be empty")
	}

	session, err := g.registry.Lookup(tenantID)
	if err != nil {
		return nil, err
	}

	return session.SendMedia(ctx, validation.NormalizePeerNumber(to), data, mimeType, caption)
}

// SetStatusMessage updates the tenant account's presence status.
func (g *Gateway) SetStatusMessage(ctx context.Context, tenantID, text string) error {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if err := validation.ValidateStatusMessage(text); err != nil {
		return err
	}

	session, err := g.registry.Lookup(tenantID)
	if err != nil {
		return err
	}

	return session.SetStatusMessage(ctx, text)
}

// Logout terminates the tenant's session.
func (g *Gateway) Logout(ctx context.Context, tenantID string) error {
	if err := validation.ValidateTenantID(tenantID); err != nil {
		return err
	}

	session, err := g.registry.Lookup(tenantID)
	if err != nil {
		return err
	}

	return session.Logout(ctx)
}

// Shutdown closes all live sessions without remote logouts. Durable
// statuses are left as-is so a restart can observe the last known state.
func (g *Gateway) Shutdown() {
	sessions := g.registry.Drain()
	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		g.logger.WithField("count", len(sessions)).Info("Closed live sessions on shutdown")
	}
}
