package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/mocks"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// countingSource returns the same candidates on every fetch.
type countingSource struct {
	name   string
	quotes []domain.Quote
	calls  atomic.Int32
}

func (c *countingSource) Name() string { return c.name }

func (c *countingSource) FetchCandidates(context.Context) ([]domain.Quote, error) {
	c.calls.Add(1)
	return c.quotes, nil
}

func newTestSyncer(t *testing.T, store *QuoteStore, sources ...ports.QuoteSource) *Syncer {
	t.Helper()

	s, err := NewSyncer(SyncerConfig{
		Store:    store,
		Sources:  sources,
		Interval: 10 * time.Millisecond,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	return s
}

func mockSource(t *testing.T, name string) *mocks.MockQuoteSource {
	t.Helper()

	m := mocks.NewMockQuoteSource(t)
	m.EXPECT().Name().Return(name).Maybe()

	return m
}

func TestNewSyncer_RequiresStore(t *testing.T) {
	_, err := NewSyncer(SyncerConfig{})
	assert.Error(t, err)
}

func TestSyncer_SyncOnce_RemoteWinsOnCollision(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, q("local only", "Mine"), q("shared", "Mine"))

	remote := domain.Quote{ID: "posts-1", Text: "shared", Category: "server", Author: "user-1"}
	src := mockSource(t, "posts")
	src.EXPECT().FetchCandidates(mock.Anything).Return([]domain.Quote{remote}, nil).Once()

	result, err := newTestSyncer(t, store.QuoteStore, src).SyncOnce(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"posts"}, result.Sources)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.DiscardedLocal)
	assert.Equal(t, 2, result.Total)

	assert.Equal(t, []domain.Quote{remote, q("local only", "Mine")}, store.List())
	assert.Equal(t, store.List(), store.storedCollection(t))
}

func TestSyncer_SyncOnce_SourcesKeepConfigurationOrder(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, q("local", "Mine"))

	first := mockSource(t, "first")
	second := mockSource(t, "second")

	// The first source finishes last; its candidates still come first.
	release := make(chan struct{})
	first.EXPECT().FetchCandidates(mock.Anything).RunAndReturn(func(context.Context) ([]domain.Quote, error) {
		<-release
		return []domain.Quote{q("one", "server")}, nil
	}).Once()
	second.EXPECT().FetchCandidates(mock.Anything).RunAndReturn(func(context.Context) ([]domain.Quote, error) {
		close(release)
		return []domain.Quote{q("two", "server")}, nil
	}).Once()

	_, err := newTestSyncer(t, store.QuoteStore, first, second).SyncOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.Quote{q("one", "server"), q("two", "server"), q("local", "Mine")}, store.List())
}

func TestSyncer_SyncOnce_FailedSourceLeavesCollectionUntouched(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, q("local", "Mine"))
	before := store.storedCollection(t)

	ok := mockSource(t, "ok")
	ok.EXPECT().FetchCandidates(mock.Anything).Return([]domain.Quote{q("remote", "server")}, nil).Maybe()

	failing := mockSource(t, "failing")
	failing.EXPECT().FetchCandidates(mock.Anything).
		Return(nil, domain.NewUnavailableError("failing", "503 from upstream")).Once()

	_, err := newTestSyncer(t, store.QuoteStore, ok, failing).SyncOnce(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))

	step, found := GetExecutionStep(err)
	require.True(t, found)
	assert.Equal(t, StepPerform, step)

	assert.Equal(t, []domain.Quote{q("local", "Mine")}, store.List())
	assert.Equal(t, before, store.storedCollection(t))
}

func TestSyncer_SyncOnce_DropsBlankCandidates(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t)

	src := mockSource(t, "posts")
	src.EXPECT().FetchCandidates(mock.Anything).Return([]domain.Quote{
		q("kept", "server"),
		q("   ", "server"),
		q("no category", " "),
	}, nil).Once()

	result, err := newTestSyncer(t, store.QuoteStore, src).SyncOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, []domain.Quote{q("kept", "server")}, store.List())
}

func TestSyncer_SyncOnce_NoSources(t *testing.T) {
	store := loadedStore(t)

	_, err := newTestSyncer(t, store.QuoteStore).SyncOnce(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSyncer_SyncOnce_SkipsWhileInFlight(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, q("local", "Mine"))

	started := make(chan struct{})
	release := make(chan struct{})

	src := mockSource(t, "slow")
	src.EXPECT().FetchCandidates(mock.Anything).RunAndReturn(func(context.Context) ([]domain.Quote, error) {
		close(started)
		<-release
		return []domain.Quote{q("remote", "server")}, nil
	}).Once()

	syncer := newTestSyncer(t, store.QuoteStore, src)

	var wg sync.WaitGroup
	var firstErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = syncer.SyncOnce(ctx)
	}()

	<-started
	assert.True(t, syncer.InFlight())

	_, err := syncer.SyncOnce(ctx)
	require.ErrorIs(t, err, ErrSyncInFlight)
	assert.True(t, domain.IsConflict(err))

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.False(t, syncer.InFlight())
	assert.Equal(t, []domain.Quote{q("remote", "server"), q("local", "Mine")}, store.List())
}

func TestSyncer_SyncOnce_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, q("local", "Mine"))
	src := &countingSource{name: "posts", quotes: []domain.Quote{q("remote", "server")}}
	syncer := newTestSyncer(t, store.QuoteStore, src)

	_, err := syncer.SyncOnce(ctx)
	require.NoError(t, err)
	after := store.List()

	_, err = syncer.SyncOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, after, store.List())
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestSyncer_Run(t *testing.T) {
	t.Run("ticks until cancelled", func(t *testing.T) {
		store := loadedStore(t, q("local", "Mine"))
		src := &countingSource{name: "posts", quotes: []domain.Quote{q("remote", "server")}}
		syncer := newTestSyncer(t, store.QuoteStore, src)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- syncer.Run(ctx) }()

		require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		assert.Equal(t, "remote", store.List()[0].Text)
	})

	t.Run("sync on start runs before the first tick", func(t *testing.T) {
		store := loadedStore(t)
		src := &countingSource{name: "posts", quotes: []domain.Quote{q("remote", "server")}}

		syncer, err := NewSyncer(SyncerConfig{
			Store:       store.QuoteStore,
			Sources:     []ports.QuoteSource{src},
			Interval:    time.Hour,
			SyncOnStart: true,
			Logger:      discardLogger(),
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- syncer.Run(ctx) }()

		require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		assert.EqualValues(t, 1, src.calls.Load())
	})

	t.Run("failed cycle retries on the next tick", func(t *testing.T) {
		store := loadedStore(t, q("local", "Mine"))

		src := mockSource(t, "flaky")
		src.EXPECT().FetchCandidates(mock.Anything).Return(nil, errors.New("timeout")).Once()
		src.EXPECT().FetchCandidates(mock.Anything).Return([]domain.Quote{q("remote", "server")}, nil).Maybe()

		syncer := newTestSyncer(t, store.QuoteStore, src)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- syncer.Run(ctx) }()

		require.Eventually(t, func() bool { return store.Len() == 2 }, time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		syncer, err := NewSyncer(SyncerConfig{Store: loadedStore(t).QuoteStore, Logger: discardLogger()})
		require.NoError(t, err)

		assert.Error(t, syncer.Run(context.Background()))
	})
}
