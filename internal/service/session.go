package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"wagate/internal/constants"
	"wagate/internal/errors"
	"wagate/internal/models"
	"wagate/internal/privacy"
	"wagate/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// SessionState is the in-memory lifecycle state of one tenant's session.
type SessionState string

const (
	StateInitializing  SessionState = "initializing"
	StateAwaitingScan  SessionState = "awaiting_scan"
	StateAuthenticated SessionState = "authenticated"
	StateReady         SessionState = "ready"
	StateDisconnected  SessionState = "disconnected"
	StateLoggedOut     SessionState = "logged_out"
	StateAuthFailed    SessionState = "auth_failed"
)

// Terminal reports whether the state accepts no further events.
func (s SessionState) Terminal() bool {
	return s == StateDisconnected || s == StateLoggedOut || s == StateAuthFailed
}

// SessionStore is the slice of the persistence gateway a session needs.
type SessionStore interface {
	UpsertClient(ctx context.Context, rec *models.ClientRecord) error
	UpdateClientStatus(ctx context.Context, tenantID string, status models.ClientStatus) error
	UpdateClientStatusMessage(ctx context.Context, tenantID, statusMessage string) error
	InsertMessageLogIfAbsent(ctx context.Context, entry *models.MessageLogEntry) (bool, error)
	SaveQRArtifact(ctx context.Context, tenantID, payload string) error
}

// RosterSyncer mirrors a tenant's roster into durable storage once the
// session reaches ready.
type RosterSyncer interface {
	Sync(ctx context.Context, tenantID string, transport types.Transport)
}

// CredentialCleaner removes a tenant's on-disk session credentials.
type CredentialCleaner interface {
	Cleanup(ctx context.Context, tenantID string)
}

// qrResult is handed to the single caller waiting on initialization:
// either the pairing payload or the failure that preempted it.
type qrResult struct {
	payload string
	err     error
}

// Session is the state machine coordinating one tenant's transport
// connection. Events from its own transport are handled by one goroutine
// in arrival order; different sessions run fully concurrently.
type Session struct {
	tenantID  string
	transport types.Transport
	store     SessionStore
	registry  *Registry
	syncer    RosterSyncer
	cleaner   CredentialCleaner
	logger    *logrus.Logger

	mu          sync.RWMutex
	state       SessionState
	phoneNumber string

	qrCh   chan qrResult
	doneCh chan struct{}
}

// NewSession creates a session in the initializing state. It does not
// touch the transport until Start.
func NewSession(tenantID string, transport types.Transport, store SessionStore, registry *Registry, syncer RosterSyncer, cleaner CredentialCleaner, logger *logrus.Logger) *Session {
	return &Session{
		tenantID:  tenantID,
		transport: transport,
		store:     store,
		registry:  registry,
		syncer:    syncer,
		cleaner:   cleaner,
		logger:    logger,
		state:     StateInitializing,
		qrCh:      make(chan qrResult, 1),
		doneCh:    make(chan struct{}),
	}
}

// TenantID returns the tenant this session belongs to.
func (s *Session) TenantID() string {
	return s.tenantID
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PhoneNumber returns the account number learned on ready.
func (s *Session) PhoneNumber() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phoneNumber
}

// Start begins the transport connection attempt and spawns the event
// loop. It never blocks on the connection itself.
func (s *Session) Start(ctx context.Context) error {
	events, err := s.transport.Initialize(ctx)
	if err != nil {
		return errors.NewTransportError("initialize", err)
	}

	go s.run(events)
	return nil
}

// WaitForQR blocks until the first pairing payload arrives, the session
// fails, or the context expires. Exactly one caller may wait.
func (s *Session) WaitForQR(ctx context.Context) (string, error) {
	select {
	case res := <-s.qrCh:
		return res.payload, res.err
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "timed out waiting for pairing code")
	}
}

// run consumes transport events until the stream closes. Per-session
// ordering comes from the single consumer.
func (s *Session) run(events <-chan types.Event) {
	defer close(s.doneCh)

	for ev := range events {
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev types.Event) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}

	switch ev.Kind {
	case types.EventQR:
		if s.state != StateInitializing && s.state != StateAwaitingScan {
			s.mu.Unlock()
			return
		}
		s.state = StateAwaitingScan
		s.mu.Unlock()

		// First payload goes to the single initialize waiter; retries
		// only refresh the audit trail.
		select {
		case s.qrCh <- qrResult{payload: ev.QR}:
		default:
		}

		go s.persistQRArtifact(ev.QR)

	case types.EventAuthenticated:
		if s.state != StateAwaitingScan {
			s.mu.Unlock()
			return
		}
		s.state = StateAuthenticated
		s.mu.Unlock()

		s.logger.WithField("tenant_id", s.tenantID).Info("Session authenticated")

	case types.EventReady:
		if s.state != StateAuthenticated {
			s.mu.Unlock()
			return
		}
		s.state = StateReady
		s.phoneNumber = ev.PhoneNumber
		s.mu.Unlock()

		s.onReady(ev.PhoneNumber)

	case types.EventMessage:
		if s.state != StateReady || ev.Message == nil {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		go s.persistInboundMessage(ev.Message)

	case types.EventAuthFailure:
		s.state = StateAuthFailed
		s.mu.Unlock()

		s.onAuthFailure(ev.Reason)

	case types.EventDisconnected:
		wasReady := s.state == StateReady
		s.state = StateDisconnected
		s.mu.Unlock()

		s.onDisconnected(ev.Reason, wasReady)

	default:
		s.mu.Unlock()
	}
}

func (s *Session) onReady(phoneNumber string) {
	s.logger.WithFields(logrus.Fields{
		"tenant_id": s.tenantID,
		"phone":     privacy.MaskPhoneNumber(phoneNumber),
	}).Info("Session ready")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
	defer cancel()

	rec := &models.ClientRecord{
		TenantID:    s.tenantID,
		Status:      models.ClientStatusReady,
		PhoneNumber: phoneNumber,
	}
	if err := s.store.UpsertClient(ctx, rec); err != nil {
		errors.LogError(s.logger, errors.NewPersistenceError("upsert client", err),
			"Failed to persist ready client record", logrus.Fields{"tenant_id": s.tenantID})
	}

	// Roster sync runs to completion in the background; its failure
	// never affects session state.
	if s.syncer != nil {
		go s.syncer.Sync(context.Background(), s.tenantID, s.transport)
	}
}

func (s *Session) onAuthFailure(reason string) {
	s.logger.WithFields(logrus.Fields{
		"tenant_id": s.tenantID,
		"reason":    reason,
	}).Warn("Session authentication failed")

	// No persistence mutation on auth failure.
	s.failWaiter(errors.New(errors.ErrCodeAuthFailure, fmt.Sprintf("authentication failed: %s", reason)))
	s.registry.Remove(s.tenantID)
}

func (s *Session) onDisconnected(reason string, wasReady bool) {
	s.logger.WithFields(logrus.Fields{
		"tenant_id": s.tenantID,
		"reason":    reason,
	}).Info("Session disconnected")

	s.failWaiter(errors.New(errors.ErrCodeTransportFailure, fmt.Sprintf("disconnected: %s", reason)))

	if wasReady {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
		defer cancel()
		if err := s.store.UpdateClientStatus(ctx, s.tenantID, models.ClientStatusDisconnected); err != nil {
			errors.LogError(s.logger, errors.NewPersistenceError("update client status", err),
				"Failed to mark client disconnected", logrus.Fields{"tenant_id": s.tenantID})
		}
	}

	s.registry.Remove(s.tenantID)
}

// failWaiter unblocks the initialize waiter if it is still waiting.
func (s *Session) failWaiter(err error) {
	select {
	case s.qrCh <- qrResult{err: err}:
	default:
	}
}

func (s *Session) persistQRArtifact(payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
	defer cancel()

	if err := s.store.SaveQRArtifact(ctx, s.tenantID, payload); err != nil {
		errors.LogError(s.logger, errors.NewPersistenceError("save qr artifact", err),
			"Failed to persist QR artifact", logrus.Fields{"tenant_id": s.tenantID})
	}
}

// persistInboundMessage logs an inbound message. Failures are logged and
// never surfaced to the transport; the write may race a concurrent
// teardown and is allowed to complete or fail on its own.
func (s *Session) persistInboundMessage(msg *types.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
	defer cancel()

	entry := &models.MessageLogEntry{
		TenantID:   s.tenantID,
		PeerNumber: msg.From,
		Body:       msg.Body,
	}
	if _, err := s.store.InsertMessageLogIfAbsent(ctx, entry); err != nil {
		errors.LogError(s.logger, errors.NewPersistenceError("insert message log", err),
			"Failed to persist inbound message", logrus.Fields{
				"tenant_id": s.tenantID,
				"peer":      privacy.MaskPhoneNumber(msg.From),
			})
	}
}

// SendText sends a text message on behalf of the tenant. Only valid in
// the ready state; a successful send is logged fire-and-forget.
func (s *Session) SendText(ctx context.Context, peerNumber, body string) (*types.SendResult, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	result, err := s.transport.SendText(ctx, chatIDForPeer(peerNumber), body)
	if err != nil {
		return nil, wrapSendError(err, "failed to send message")
	}

	go func() {
		logCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
		defer cancel()

		entry := &models.MessageLogEntry{
			TenantID:   s.tenantID,
			PeerNumber: peerNumber,
			Body:       body,
		}
		if _, err := s.store.InsertMessageLogIfAbsent(logCtx, entry); err != nil {
			errors.LogError(s.logger, errors.NewPersistenceError("insert message log", err),
				"Failed to log outbound message", logrus.Fields{
					"tenant_id": s.tenantID,
					"peer":      privacy.MaskPhoneNumber(peerNumber),
				})
		}
	}()

	return result, nil
}

// SendMedia sends a media message. Only valid in the ready state.
func (s *Session) SendMedia(ctx context.Context, peerNumber string, data []byte, mimeType, caption string) (*types.SendResult, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	result, err := s.transport.SendMedia(ctx, chatIDForPeer(peerNumber), data, mimeType, caption)
	if err != nil {
		return nil, wrapSendError(err, "failed to send media")
	}

	return result, nil
}

// SetStatusMessage updates the account's presence status. Only valid in
// the ready state; the durable copy is updated fire-and-forget.
func (s *Session) SetStatusMessage(ctx context.Context, text string) error {
	if err := s.requireReady(); err != nil {
		return err
	}

	if err := s.transport.SetStatus(ctx, text); err != nil {
		return errors.NewTransportError("set status", err)
	}

	go func() {
		updCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
		defer cancel()
		if err := s.store.UpdateClientStatusMessage(updCtx, s.tenantID, text); err != nil {
			errors.LogError(s.logger, errors.NewPersistenceError("update status message", err),
				"Failed to persist status message", logrus.Fields{"tenant_id": s.tenantID})
		}
	}()

	return nil
}

// Logout explicitly terminates the session. On success the durable
// status becomes logged_out, the registry slot is released, and on-disk
// credentials are scheduled for best-effort deletion.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() {
		state := s.state
		s.mu.Unlock()
		return errors.NewNotReadyError(s.tenantID, string(state))
	}
	s.mu.Unlock()

	if err := s.transport.Logout(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeLogoutFailed, "failed to log out")
	}

	s.mu.Lock()
	s.state = StateLoggedOut
	s.mu.Unlock()

	if err := s.store.UpdateClientStatus(ctx, s.tenantID, models.ClientStatusLoggedOut); err != nil {
		errors.LogError(s.logger, errors.NewPersistenceError("update client status", err),
			"Failed to mark client logged out", logrus.Fields{"tenant_id": s.tenantID})
	}

	s.registry.Remove(s.tenantID)

	if s.cleaner != nil {
		go s.cleaner.Cleanup(context.Background(), s.tenantID)
	}

	s.logger.WithField("tenant_id", s.tenantID).Info("Session logged out")
	return nil
}

// Close releases the session without a remote logout; used at process
// shutdown. The transport stops emitting events and the slot is freed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.registry.Remove(s.tenantID)
}

func (s *Session) requireReady() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return errors.NewNotReadyError(s.tenantID, string(s.state))
	}
	return nil
}

// chatIDForPeer converts a normalized peer number into the transport
// chat ID form.
func chatIDForPeer(peerNumber string) string {
	return peerNumber + "@c.us"
}

// wrapSendError distinguishes an unregistered peer from other send
// failures so the API can reject it as a client error.
func wrapSendError(err error, message string) error {
	if stderrors.Is(err, types.ErrPeerUnregistered) {
		return errors.Wrap(err, errors.ErrCodePeerUnregistered, "peer is not a registered account")
	}
	return errors.Wrap(err, errors.ErrCodeSendFailed, message)
}
