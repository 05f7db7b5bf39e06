package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_RefreshAlwaysFetches(t *testing.T) {
	calls := 0
	l := NewList("top_videos", func(context.Context) ([]string, error) {
		calls++
		return []string{"V1", "V2"}, nil
	})

	require.NoError(t, l.Refresh(context.Background()))
	require.NoError(t, l.Refresh(context.Background()))

	assert.Equal(t, 2, calls)
	state := l.State()
	assert.Equal(t, []string{"V1", "V2"}, state.Items)
	assert.True(t, state.Loaded)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
}

func TestList_FailureKeepsItemsAndRecordsError(t *testing.T) {
	fail := false
	l := NewList("top_videos", func(context.Context) ([]string, error) {
		if fail {
			return nil, errors.New("Tracker not found")
		}
		return []string{"V1"}, nil
	})

	require.NoError(t, l.Refresh(context.Background()))
	fail = true
	err := l.Refresh(context.Background())

	require.Error(t, err)
	assert.EqualError(t, l.Err(), "Tracker not found")
	assert.Equal(t, []string{"V1"}, l.Items())

	fail = false
	require.NoError(t, l.Refresh(context.Background()))
	assert.NoError(t, l.Err(), "a later success clears the error")
}

func TestList_StaleResponseIsDiscarded(t *testing.T) {
	slowGate := make(chan struct{})
	slowStarted := make(chan struct{})
	var mu sync.Mutex
	call := 0

	l := NewList("top_videos", func(context.Context) ([]string, error) {
		mu.Lock()
		call++
		n := call
		mu.Unlock()
		if n == 1 {
			close(slowStarted)
			<-slowGate
			return []string{"old"}, nil
		}
		return []string{"new"}, nil
	})

	slow := make(chan error, 1)
	go func() { slow <- l.Refresh(context.Background()) }()
	<-slowStarted

	require.NoError(t, l.Refresh(context.Background()))
	close(slowGate)

	assert.ErrorIs(t, <-slow, ErrStaleRefresh)
	assert.Equal(t, []string{"new"}, l.Items())
}

func TestList_CancelledConsumerIsNotUpdated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hookCalls := 0
	l := NewList("top_videos", func(context.Context) ([]string, error) {
		cancel()
		return []string{"V1"}, nil
	})
	l.OnLoaded(func([]string) { hookCalls++ })

	err := l.Refresh(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, l.Items())
	assert.False(t, l.State().Loaded)
	assert.Equal(t, 0, hookCalls)
}

func TestList_EmptyResultIsLoaded(t *testing.T) {
	l := NewList("top_videos", func(context.Context) ([]string, error) {
		return nil, nil
	})

	require.NoError(t, l.Refresh(context.Background()))

	state := l.State()
	assert.True(t, state.Loaded)
	assert.Empty(t, state.Items)
}

func TestPrefetchTop(t *testing.T) {
	f := newSeriesFetcher()
	lazy := NewLazy(context.Background(), "timeseries", f.fetch)
	l := NewList("top_videos", func(context.Context) ([]string, error) {
		return []string{"V1", "V2", "V3"}, nil
	})
	l.OnLoaded(PrefetchTop(lazy, func(id string) string { return id }))

	require.NoError(t, l.Refresh(context.Background()))
	wait(t, lazy.EnsureLoaded("V1"))

	assert.Equal(t, 1, f.count("V1"), "top item is warmed without expansion")
	assert.Equal(t, 0, f.count("V2"))
	assert.Equal(t, NotLoaded, lazy.Entry("V2").Status)
}

func TestPrefetchTop_EmptyList(t *testing.T) {
	f := newSeriesFetcher()
	lazy := NewLazy(context.Background(), "timeseries", f.fetch)

	PrefetchTop(lazy, func(id string) string { return id })(nil)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.calls)
}
