package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"wagate/internal/constants"
	"wagate/internal/errors"
	"wagate/internal/models"
	"wagate/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// RosterStore is the slice of the persistence gateway the sync engine
// needs. Both inserts are conditional: replaying the same roster is a
// no-op at the storage layer.
type RosterStore interface {
	InsertContactIfAbsent(ctx context.Context, rec *models.ContactRecord) (bool, error)
	InsertChatIfAbsent(ctx context.Context, rec *models.ChatRecord) (bool, error)
}

// RosterSync mirrors a tenant's contact and chat rosters into durable
// storage after the session reaches ready. Contacts and chats sync
// independently; a failure in one never blocks the other.
type RosterSync struct {
	store  RosterStore
	logger *logrus.Logger
}

// NewRosterSync creates a roster sync engine.
func NewRosterSync(store RosterStore, logger *logrus.Logger) *RosterSync {
	return &RosterSync{
		store:  store,
		logger: logger,
	}
}

// Sync fetches both rosters from the transport and persists each entry
// conditionally. Per-entry failures are logged and skipped; the rest of
// the roster still lands.
func (r *RosterSync) Sync(ctx context.Context, tenantID string, transport types.Transport) {
	syncCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.DefaultTransportTimeoutSec)*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		r.syncContacts(syncCtx, tenantID, transport)
	}()
	go func() {
		defer wg.Done()
		r.syncChats(syncCtx, tenantID, transport)
	}()

	wg.Wait()
}

func (r *RosterSync) syncContacts(ctx context.Context, tenantID string, transport types.Transport) {
	entries, err := transport.ListContacts(ctx)
	if err != nil {
		errors.LogWarn(r.logger, errors.NewTransportError("list contacts", err),
			"Contact sync failed", logrus.Fields{"tenant_id": tenantID})
		return
	}

	inserted := 0
	for i := range entries {
		rec := contactFromEntry(tenantID, &entries[i])
		ok, err := r.store.InsertContactIfAbsent(ctx, rec)
		if err != nil {
			errors.LogWarn(r.logger, errors.NewPersistenceError("insert contact", err),
				"Failed to persist contact", logrus.Fields{"tenant_id": tenantID})
			continue
		}
		if ok {
			inserted++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"total":     len(entries),
		"inserted":  inserted,
	}).Info("Contact sync complete")
}

func (r *RosterSync) syncChats(ctx context.Context, tenantID string, transport types.Transport) {
	entries, err := transport.ListChats(ctx)
	if err != nil {
		errors.LogWarn(r.logger, errors.NewTransportError("list chats", err),
			"Chat sync failed", logrus.Fields{"tenant_id": tenantID})
		return
	}

	inserted := 0
	for i := range entries {
		rec := chatFromEntry(tenantID, &entries[i])
		ok, err := r.store.InsertChatIfAbsent(ctx, rec)
		if err != nil {
			errors.LogWarn(r.logger, errors.NewPersistenceError("insert chat", err),
				"Failed to persist chat", logrus.Fields{"tenant_id": tenantID})
			continue
		}
		if ok {
			inserted++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"total":     len(entries),
		"inserted":  inserted,
	}).Info("Chat sync complete")
}

func contactFromEntry(tenantID string, e *types.RosterEntry) *models.ContactRecord {
	return &models.ContactRecord{
		TenantID:      tenantID,
		Name:          rosterName(e),
		ContactNumber: rosterNumber(e),
		Kind:          rosterKind(e),
	}
}

func chatFromEntry(tenantID string, e *types.RosterEntry) *models.ChatRecord {
	return &models.ChatRecord{
		TenantID:      tenantID,
		Name:          rosterName(e),
		ContactNumber: rosterNumber(e),
		Kind:          rosterKind(e),
	}
}

// rosterName falls back to the entity ID when the upstream roster has no
// display name for it.
func rosterName(e *types.RosterEntry) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// rosterNumber is nil for group entities; numbers arrive in chat-ID form
// and are stored as bare digits.
func rosterNumber(e *types.RosterEntry) *string {
	if e.IsGroup {
		return nil
	}
	n := strings.TrimSuffix(e.Number, "@c.us")
	if n == "" {
		return nil
	}
	return &n
}

func rosterKind(e *types.RosterEntry) models.RosterKind {
	if e.IsGroup {
		return models.RosterKindGroup
	}
	return models.RosterKindPrivate
}
