package integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wagate/internal/errors"
	"wagate/internal/models"
	"wagate/internal/service"
	"wagate/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFullPairingFlowPersistsClient(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()

	tr := env.Transport("acme")
	tr.contacts = []types.RosterEntry{
		{ID: "15550001111@c.us", Name: "Alice", Number: "15550001111@c.us"},
		{ID: "group-1@g.us", Name: "Team", IsGroup: true},
	}
	tr.chats = []types.RosterEntry{
		{ID: "15550001111@c.us", Name: "Alice", Number: "15550001111@c.us"},
	}

	qrPNG := []byte("png-bytes")
	tr.Emit(types.Event{Kind: types.EventQR, QR: base64.StdEncoding.EncodeToString(qrPNG)})

	png, err := env.Gateway.InitializeSession(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(qrPNG, png))

	tr.Emit(types.Event{Kind: types.EventAuthenticated})
	tr.Emit(types.Event{Kind: types.EventReady, PhoneNumber: "15551234567"})

	require.Eventually(t, func() bool {
		status, err := env.Gateway.GetStatus("acme")
		return err == nil && status.State == service.StateReady
	}, 2*time.Second, 10*time.Millisecond)

	// Durable client row
	require.Eventually(t, func() bool {
		rec, err := env.DB.GetClient(ctx, "acme")
		return err == nil && rec != nil && rec.Status == models.ClientStatusReady
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := env.DB.GetClient(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "15551234567", rec.PhoneNumber)

	// QR audit trail
	artifact, err := env.DB.GetLatestQRArtifact(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, base64.StdEncoding.EncodeToString(qrPNG), artifact.Payload)

	// Roster sync landed: re-inserting the same entries reports duplicates
	require.Eventually(t, func() bool {
		inserted, err := env.DB.InsertContactIfAbsent(ctx, &models.ContactRecord{
			TenantID:      "acme",
			Name:          "Alice",
			ContactNumber: strPtr("15550001111"),
			Kind:          models.RosterKindPrivate,
		})
		return err == nil && !inserted
	}, 2*time.Second, 10*time.Millisecond)

	inserted, err := env.DB.InsertContactIfAbsent(ctx, &models.ContactRecord{
		TenantID: "acme",
		Name:     "Team",
		Kind:     models.RosterKindGroup,
	})
	require.NoError(t, err)
	assert.False(t, inserted, "group contact should already be synced")
}

func TestDuplicateInitializeRejected(t *testing.T) {
	env := NewTestEnvironment(t)
	env.PairAndReady("acme", "15551234567")

	_, err := env.Gateway.InitializeSession(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyActive, errors.GetCode(err))
}

func TestSendMessageLogsDurably(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551234567")

	result, err := env.Gateway.SendMessage(ctx, "acme", "+15550001111", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", result.MessageID)

	tr := env.Transport("acme")
	tr.mu.Lock()
	sent := append([]string(nil), tr.sent...)
	tr.mu.Unlock()
	require.Len(t, sent, 1)
	assert.Equal(t, "15550001111@c.us", sent[0])

	// The log write is fire-and-forget; wait until the row exists, shown
	// by the conditional insert reporting a duplicate.
	require.Eventually(t, func() bool {
		inserted, err := env.DB.InsertMessageLogIfAbsent(ctx, &models.MessageLogEntry{
			TenantID:   "acme",
			PeerNumber: "15550001111",
			Body:       "hello there",
		})
		return err == nil && !inserted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInboundDuplicateCollapses(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551234567")

	tr := env.Transport("acme")
	msg := &types.InboundMessage{From: "15550002222", To: "15551234567", Body: "ping"}
	tr.Emit(types.Event{Kind: types.EventMessage, Message: msg})
	tr.Emit(types.Event{Kind: types.EventMessage, Message: msg})

	require.Eventually(t, func() bool {
		inserted, err := env.DB.InsertMessageLogIfAbsent(ctx, &models.MessageLogEntry{
			TenantID:   "acme",
			PeerNumber: "15550002222",
			Body:       "ping",
		})
		return err == nil && !inserted
	}, 2*time.Second, 10*time.Millisecond)

	// A different body is still a fresh row
	inserted, err := env.DB.InsertMessageLogIfAbsent(ctx, &models.MessageLogEntry{
		TenantID:   "acme",
		PeerNumber: "15550002222",
		Body:       "pong",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestLogoutRemovesCredentialsAndFreesSlot(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551234567")

	credDir := filepath.Join(env.SessionsDir, "acme")
	require.NoError(t, os.MkdirAll(credDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(credDir, "creds.json"), []byte("{}"), 0o600))

	require.NoError(t, env.Gateway.Logout(ctx, "acme"))

	_, err := env.Gateway.GetStatus("acme")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))

	rec, err := env.DB.GetClient(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.ClientStatusLoggedOut, rec.Status)

	require.Eventually(t, func() bool {
		_, err := os.Stat(credDir)
		return os.IsNotExist(err)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReinitializeAfterLogout(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551234567")

	require.NoError(t, env.Gateway.Logout(ctx, "acme"))

	tr := env.ResetTransport("acme")
	tr.Emit(types.Event{Kind: types.EventQR, QR: base64.StdEncoding.EncodeToString([]byte("fresh"))})

	png, err := env.Gateway.InitializeSession(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), png)

	tr.Emit(types.Event{Kind: types.EventAuthenticated})
	tr.Emit(types.Event{Kind: types.EventReady, PhoneNumber: "15551234567"})

	require.Eventually(t, func() bool {
		rec, err := env.DB.GetClient(ctx, "acme")
		return err == nil && rec != nil && rec.Status == models.ClientStatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectAfterReadyPersistsStatus(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551234567")

	env.Transport("acme").Emit(types.Event{Kind: types.EventDisconnected, Reason: "remote logout"})

	require.Eventually(t, func() bool {
		rec, err := env.DB.GetClient(ctx, "acme")
		return err == nil && rec != nil && rec.Status == models.ClientStatusDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	_, err := env.Gateway.GetStatus("acme")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestTenantsAreIsolated(t *testing.T) {
	env := NewTestEnvironment(t)
	ctx := context.Background()
	env.PairAndReady("acme", "15551111111")
	env.PairAndReady("globex", "15552222222")

	_, err := env.Gateway.SendMessage(ctx, "acme", "15550001111", "from acme")
	require.NoError(t, err)

	// Same peer and body under a different tenant is a fresh row
	require.Eventually(t, func() bool {
		inserted, err := env.DB.InsertMessageLogIfAbsent(ctx, &models.MessageLogEntry{
			TenantID:   "acme",
			PeerNumber: "15550001111",
			Body:       "from acme",
		})
		return err == nil && !inserted
	}, 2*time.Second, 10*time.Millisecond)

	inserted, err := env.DB.InsertMessageLogIfAbsent(ctx, &models.MessageLogEntry{
		TenantID:   "globex",
		PeerNumber: "15550001111",
		Body:       "from acme",
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	require.NoError(t, env.Gateway.Logout(ctx, "acme"))

	// globex is untouched
	status, err := env.Gateway.GetStatus("globex")
	require.NoError(t, err)
	assert.Equal(t, service.StateReady, status.State)
}
