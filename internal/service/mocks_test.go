package service

import (
	"context"
	"sync"

	"wagate/internal/models"
	"wagate/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeTransport is a scriptable transport. Tests drive the session by
// pushing events onto the channel returned from Initialize.
type fakeTransport struct {
	mu sync.Mutex

	events chan types.Event

	initErr    error
	sendErr    error
	statusErr  error
	logoutErr  error
	contacts   []types.RosterEntry
	chats      []types.RosterEntry
	contactErr error
	chatErr    error

	sentTexts  []sentText
	sentMedia  []sentMedia
	statusSets []string
	logouts    int
}

type sentText struct {
	chatID string
	body   string
}

type sentMedia struct {
	chatID   string
	mimeType string
	caption  string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan types.Event, 16),
	}
}

func (f *fakeTransport) Initialize(ctx context.Context) (<-chan types.Event, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.events, nil
}

func (f *fakeTransport) SendText(ctx context.Context, chatID, body string) (*types.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentTexts = append(f.sentTexts, sentText{chatID: chatID, body: body})
	return &types.SendResult{MessageID: "msg-1", Status: "sent"}, nil
}

func (f *fakeTransport) SendMedia(ctx context.Context, chatID string, data []byte, mimeType, caption string) (*types.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentMedia = append(f.sentMedia, sentMedia{chatID: chatID, mimeType: mimeType, caption: caption})
	return &types.SendResult{MessageID: "media-1", Status: "sent"}, nil
}

func (f *fakeTransport) SetStatus(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusSets = append(f.statusSets, text)
	return nil
}

func (f *fakeTransport) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logoutErr != nil {
		return f.logoutErr
	}
	f.logouts++
	return nil
}

func (f *fakeTransport) ListContacts(ctx context.Context) ([]types.RosterEntry, error) {
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	return f.contacts, nil
}

func (f *fakeTransport) ListChats(ctx context.Context) ([]types.RosterEntry, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chats, nil
}

func (f *fakeTransport) sentTextCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sentTexts)
}

// fakeStore records persistence calls in memory and mimics the
// conditional-insert contract of the real database.
type fakeStore struct {
	mu sync.Mutex

	upsertErr  error
	insertErr  error
	clients    map[string]*models.ClientRecord
	statuses   []models.ClientStatus
	statusMsgs []string
	contacts   []*models.ContactRecord
	chats      []*models.ChatRecord
	messages   map[string]*models.MessageLogEntry
	qrSaves    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:  make(map[string]*models.ClientRecord),
		messages: make(map[string]*models.MessageLogEntry),
	}
}

func (f *fakeStore) UpsertClient(ctx context.Context, rec *models.ClientRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.clients[rec.TenantID] = rec
	return nil
}

func (f *fakeStore) UpdateClientStatus(ctx context.Context, tenantID string, status models.ClientStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if rec, ok := f.clients[tenantID]; ok {
		rec.Status = status
	}
	return nil
}

func (f *fakeStore) UpdateClientStatusMessage(ctx context.Context, tenantID, statusMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusMsgs = append(f.statusMsgs, statusMessage)
	return nil
}

func (f *fakeStore) GetClient(ctx context.Context, tenantID string) (*models.ClientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.clients[tenantID]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (f *fakeStore) InsertContactIfAbsent(ctx context.Context, rec *models.ContactRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	f.contacts = append(f.contacts, rec)
	return true, nil
}

func (f *fakeStore) InsertChatIfAbsent(ctx context.Context, rec *models.ChatRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	f.chats = append(f.chats, rec)
	return true, nil
}

func (f *fakeStore) InsertMessageLogIfAbsent(ctx context.Context, entry *models.MessageLogEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	key := entry.TenantID + "|" + entry.PeerNumber + "|" + entry.Body
	if _, exists := f.messages[key]; exists {
		return false, nil
	}
	f.messages[key] = entry
	return true, nil
}

func (f *fakeStore) SaveQRArtifact(ctx context.Context, tenantID, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrSaves = append(f.qrSaves, payload)
	return nil
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) lastStatus() models.ClientStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

// fakeCleaner records cleanup requests.
type fakeCleaner struct {
	mu      sync.Mutex
	cleaned []string
}

func (f *fakeCleaner) Cleanup(ctx context.Context, tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, tenantID)
}

func (f *fakeCleaner) cleanedTenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleaned...)
}
