package integration_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wagate/internal/database"
	"wagate/internal/service"
	"wagate/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestEnvironment wires a real SQLite database behind the gateway with
// scripted transports, so full session flows run against the actual
// persistence layer.
type TestEnvironment struct {
	t           *testing.T
	DB          *database.Database
	Gateway     *service.Gateway
	SessionsDir string

	mu         sync.Mutex
	transports map[string]*scriptedTransport
}

func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "wagate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	env := &TestEnvironment{
		t:           t,
		DB:          db,
		SessionsDir: filepath.Join(dir, "sessions"),
		transports:  make(map[string]*scriptedTransport),
	}
	require.NoError(t, os.MkdirAll(env.SessionsDir, 0o755))

	factory := func(tenantID string) types.Transport {
		env.mu.Lock()
		defer env.mu.Unlock()
		tr, ok := env.transports[tenantID]
		if !ok {
			tr = newScriptedTransport()
			env.transports[tenantID] = tr
		}
		return tr
	}

	env.Gateway = service.NewGateway(db, factory,
		service.NewRosterSync(db, logger),
		service.NewSessionCredentialCleaner(env.SessionsDir, logger),
		2*time.Second, logger)

	return env
}

// Transport returns (creating if needed) the scripted transport bound to
// a tenant, so tests can drive events before or after initialization.
func (env *TestEnvironment) Transport(tenantID string) *scriptedTransport {
	env.mu.Lock()
	defer env.mu.Unlock()
	tr, ok := env.transports[tenantID]
	if !ok {
		tr = newScriptedTransport()
		env.transports[tenantID] = tr
	}
	return tr
}

// ResetTransport installs a fresh transport for the tenant. Needed when
// a test re-initializes after logout, since the previous event feed is
// still owned by the retired session.
func (env *TestEnvironment) ResetTransport(tenantID string) *scriptedTransport {
	env.mu.Lock()
	defer env.mu.Unlock()
	tr := newScriptedTransport()
	env.transports[tenantID] = tr
	return tr
}

// PairAndReady drives a tenant through the full pairing flow and waits
// until the session reports ready.
func (env *TestEnvironment) PairAndReady(tenantID, phoneNumber string) {
	env.t.Helper()

	tr := env.Transport(tenantID)
	tr.Emit(types.Event{Kind: types.EventQR, QR: base64.StdEncoding.EncodeToString([]byte("qr-png"))})

	_, err := env.Gateway.InitializeSession(context.Background(), tenantID)
	require.NoError(env.t, err)

	tr.Emit(types.Event{Kind: types.EventAuthenticated})
	tr.Emit(types.Event{Kind: types.EventReady, PhoneNumber: phoneNumber})

	require.Eventually(env.t, func() bool {
		status, err := env.Gateway.GetStatus(tenantID)
		return err == nil && status.State == service.StateReady
	}, 2*time.Second, 10*time.Millisecond)
}

// scriptedTransport is a transport driven by the test.
type scriptedTransport struct {
	mu     sync.Mutex
	events chan types.Event

	contacts []types.RosterEntry
	chats    []types.RosterEntry

	sendErr   error
	logoutErr error
	sent      []string
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		events: make(chan types.Event, 32),
	}
}

func (s *scriptedTransport) Emit(ev types.Event) {
	s.events <- ev
}

func (s *scriptedTransport) CloseFeed() {
	close(s.events)
}

func (s *scriptedTransport) Initialize(ctx context.Context) (<-chan types.Event, error) {
	return s.events, nil
}

func (s *scriptedTransport) SendText(ctx context.Context, chatID, body string) (*types.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, chatID)
	return &types.SendResult{MessageID: "sent-1", Status: "sent"}, nil
}

func (s *scriptedTransport) SendMedia(ctx context.Context, chatID string, data []byte, mimeType, caption string) (*types.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &types.SendResult{MessageID: "media-1", Status: "sent"}, nil
}

func (s *scriptedTransport) SetStatus(ctx context.Context, text string) error {
	return nil
}

func (s *scriptedTransport) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutErr
}

func (s *scriptedTransport) ListContacts(ctx context.Context) ([]types.RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts, nil
}

func (s *scriptedTransport) ListChats(ctx context.Context) ([]types.RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chats, nil
}
