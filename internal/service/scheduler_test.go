package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetentionStore struct {
	mu       sync.Mutex
	qrCalls  int
	logCalls int
	lastDays int
	err      error
}

func (f *fakeRetentionStore) CleanupOldQRArtifacts(ctx context.Context, retentionDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrCalls++
	f.lastDays = retentionDays
	return f.err
}

func (f *fakeRetentionStore) CleanupOldMessageLogs(ctx context.Context, retentionDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	return f.err
}

func TestSchedulerRunsCleanupOnStart(t *testing.T) {
	store := &fakeRetentionStore{}
	s := NewScheduler(store, 14, 24, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.qrCalls == 1 && store.logCalls == 1
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	assert.Equal(t, 14, store.lastDays)
	store.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestSchedulerStop(t *testing.T) {
	store := &fakeRetentionStore{}
	s := NewScheduler(store, 30, 24, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.qrCalls == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerDefaultsApplied(t *testing.T) {
	s := NewScheduler(&fakeRetentionStore{}, 0, 0, testLogger())
	assert.Equal(t, 30, s.retentionDays)
	assert.Equal(t, 24, s.intervalHours)
}

func TestSchedulerCleanupErrorDoesNotStop(t *testing.T) {
	store := &fakeRetentionStore{err: assert.AnError}
	s := NewScheduler(store, 7, 24, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.qrCalls == 1 && store.logCalls == 1
	}, time.Second, 5*time.Millisecond)
}
