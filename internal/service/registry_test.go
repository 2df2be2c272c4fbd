package service

import (
	"sync"
	"testing"

	"wagate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	s := &Session{tenantID: "t1"}

	require.NoError(t, r.Register("t1", s))

	got, err := r.Lookup("t1")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("t1", &Session{tenantID: "t1"}))

	err := r.Register("t1", &Session{tenantID: "t1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyActive, errors.GetCode(err))
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("nope")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("t1", &Session{tenantID: "t1"}))

	r.Remove("t1")
	_, err := r.Lookup("t1")
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))

	// Removing again is a no-op
	r.Remove("t1")
}

func TestRegistryConcurrentRegisterExactlyOneWins(t *testing.T) {
	r := NewRegistry()

	const racers = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Register("contested", &Session{tenantID: "contested"}); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("t1", &Session{tenantID: "t1"}))
	require.NoError(t, r.Register("t2", &Session{tenantID: "t2"}))

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryActive(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", &Session{tenantID: "a"}))
	require.NoError(t, r.Register("b", &Session{tenantID: "b"}))

	ids := r.Active()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
