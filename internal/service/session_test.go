package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wagate/internal/errors"
	"wagate/internal/models"
	"wagate/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*Session, *fakeTransport, *fakeStore, *Registry, *fakeCleaner) {
	t.Helper()

	transport := newFakeTransport()
	store := newFakeStore()
	registry := NewRegistry()
	cleaner := &fakeCleaner{}
	syncer := NewRosterSync(store, testLogger())

	s := NewSession("t1", transport, store, registry, syncer, cleaner, testLogger())
	require.NoError(t, registry.Register("t1", s))
	require.NoError(t, s.Start(context.Background()))
	return s, transport, store, registry, cleaner
}

func driveToReady(t *testing.T, s *Session, transport *fakeTransport) {
	t.Helper()

	transport.events <- types.Event{Kind: types.EventQR, QR: "cGF5bG9hZA=="}
	transport.events <- types.Event{Kind: types.EventAuthenticated}
	transport.events <- types.Event{Kind: types.EventReady, PhoneNumber: "15551234567"}

	require.Eventually(t, func() bool {
		return s.State() == StateReady
	}, time.Second, 5*time.Millisecond)
}

func TestSessionLifecycleToReady(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)

	assert.Equal(t, StateInitializing, s.State())

	transport.events <- types.Event{Kind: types.EventQR, QR: "cGF5bG9hZA=="}

	payload, err := s.WaitForQR(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cGF5bG9hZA==", payload)

	require.Eventually(t, func() bool {
		return s.State() == StateAwaitingScan
	}, time.Second, 5*time.Millisecond)

	transport.events <- types.Event{Kind: types.EventAuthenticated}
	transport.events <- types.Event{Kind: types.EventReady, PhoneNumber: "15551234567"}

	require.Eventually(t, func() bool {
		return s.State() == StateReady
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "15551234567", s.PhoneNumber())

	// Ready upsert and QR artifact land in the background
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		rec, ok := store.clients["t1"]
		return ok && rec.Status == models.ClientStatusReady && len(store.qrSaves) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionReadyWithoutAuthIsIgnored(t *testing.T) {
	s, transport, _, _, _ := newTestSession(t)

	// Skipping the scan and auth steps must not promote the session
	transport.events <- types.Event{Kind: types.EventReady, PhoneNumber: "15551234567"}
	transport.events <- types.Event{Kind: types.EventAuthenticated}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateInitializing, s.State())
}

func TestSessionSendTextRequiresReady(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)

	_, err := s.SendText(context.Background(), "15559876543", "hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotReady, errors.GetCode(err))

	// No transport traffic and no durable rows for a refused command
	assert.Equal(t, 0, transport.sentTextCount())
	assert.Equal(t, 0, store.messageCount())
}

func TestSessionSendTextLogsMessage(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	result, err := s.SendText(context.Background(), "15559876543", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.MessageID)

	transport.mu.Lock()
	require.Len(t, transport.sentTexts, 1)
	assert.Equal(t, "15559876543@c.us", transport.sentTexts[0].chatID)
	transport.mu.Unlock()

	require.Eventually(t, func() bool {
		return store.messageCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionSendTextFailureIsNotLogged(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	transport.sendErr = assert.AnError
	_, err := s.SendText(context.Background(), "15559876543", "hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSendFailed, errors.GetCode(err))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.messageCount())
}

func TestSessionSendTextUnregisteredPeer(t *testing.T) {
	s, transport, _, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	transport.sendErr = fmt.Errorf("request failed with status 422: %w", types.ErrPeerUnregistered)
	_, err := s.SendText(context.Background(), "15559876543", "hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePeerUnregistered, errors.GetCode(err))
}

func TestSessionInboundDuplicateCollapses(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	msg := types.InboundMessage{From: "15550001111", To: "15551234567", Body: "ping"}
	transport.events <- types.Event{Kind: types.EventMessage, Message: &msg}
	transport.events <- types.Event{Kind: types.EventMessage, Message: &msg}

	require.Eventually(t, func() bool {
		return store.messageCount() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, store.messageCount())
}

func TestSessionAuthFailure(t *testing.T) {
	s, transport, store, registry, _ := newTestSession(t)

	transport.events <- types.Event{Kind: types.EventAuthFailure, Reason: "pairing not completed"}
	close(transport.events)

	_, err := s.WaitForQR(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthFailure, errors.GetCode(err))

	require.Eventually(t, func() bool {
		return s.State() == StateAuthFailed
	}, time.Second, 5*time.Millisecond)

	// Slot released, no durable mutation
	_, lookupErr := registry.Lookup("t1")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(lookupErr))
	assert.Empty(t, store.statuses)
}

func TestSessionDisconnectAfterReady(t *testing.T) {
	s, transport, store, registry, _ := newTestSession(t)
	driveToReady(t, s, transport)

	transport.events <- types.Event{Kind: types.EventDisconnected, Reason: "connection lost"}
	close(transport.events)

	require.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return store.lastStatus() == models.ClientStatusDisconnected
	}, time.Second, 5*time.Millisecond)

	_, err := registry.Lookup("t1")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestSessionDisconnectBeforeReadyLeavesNoStatus(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)

	transport.events <- types.Event{Kind: types.EventQR, QR: "cGF5bG9hZA=="}
	require.Eventually(t, func() bool {
		return s.State() == StateAwaitingScan
	}, time.Second, 5*time.Millisecond)

	transport.events <- types.Event{Kind: types.EventDisconnected, Reason: "gone"}
	close(transport.events)

	require.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.statuses)
}

func TestSessionEventsAfterTerminalAreDropped(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	transport.events <- types.Event{Kind: types.EventDisconnected, Reason: "gone"}
	transport.events <- types.Event{Kind: types.EventMessage, Message: &types.InboundMessage{From: "1", Body: "late"}}
	close(transport.events)

	require.Eventually(t, func() bool {
		return s.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.messageCount())
}

func TestSessionLogout(t *testing.T) {
	s, transport, store, registry, cleaner := newTestSession(t)
	driveToReady(t, s, transport)

	require.NoError(t, s.Logout(context.Background()))

	assert.Equal(t, StateLoggedOut, s.State())
	assert.Equal(t, models.ClientStatusLoggedOut, store.lastStatus())

	_, err := registry.Lookup("t1")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))

	require.Eventually(t, func() bool {
		return len(cleaner.cleanedTenants()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"t1"}, cleaner.cleanedTenants())
}

func TestSessionLogoutTransportFailure(t *testing.T) {
	s, transport, store, registry, _ := newTestSession(t)
	driveToReady(t, s, transport)

	transport.logoutErr = assert.AnError
	err := s.Logout(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLogoutFailed, errors.GetCode(err))

	// Session stays live and ready
	assert.Equal(t, StateReady, s.State())
	_, lookupErr := registry.Lookup("t1")
	assert.NoError(t, lookupErr)
	assert.NotEqual(t, models.ClientStatusLoggedOut, store.lastStatus())
}

func TestSessionSetStatusMessage(t *testing.T) {
	s, transport, store, _, _ := newTestSession(t)
	driveToReady(t, s, transport)

	require.NoError(t, s.SetStatusMessage(context.Background(), "out of office"))

	transport.mu.Lock()
	assert.Equal(t, []string{"out of office"}, transport.statusSets)
	transport.mu.Unlock()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.statusMsgs) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSessionRosterSyncOnReady(t *testing.T) {
	transport := newFakeTransport()
	transport.contacts = []types.RosterEntry{
		{ID: "15550001111@c.us", Name: "Alice", Number: "15550001111@c.us", IsGroup: false},
	}
	transport.chats = []types.RosterEntry{
		{ID: "group-1@g.us", Name: "Team", IsGroup: true},
	}

	store := newFakeStore()
	registry := NewRegistry()
	syncer := NewRosterSync(store, testLogger())

	s := NewSession("t1", transport, store, registry, syncer, &fakeCleaner{}, testLogger())
	require.NoError(t, registry.Register("t1", s))
	require.NoError(t, s.Start(context.Background()))

	driveToReady(t, s, transport)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.contacts) == 1 && len(store.chats) == 1
	}, time.Second, 5*time.Millisecond)
}
