package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/exchange"
	"github.com/jsamuelsen/quote-keeper/internal/mocks"
)

func TestNewQuoteStore_PanicsWithoutPersistence(t *testing.T) {
	assert.Panics(t, func() {
		NewQuoteStore(QuoteStoreConfig{Logger: discardLogger()})
	})
}

func TestQuoteStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("first run seeds and persists defaults", func(t *testing.T) {
		s := newTestStore(t, nil)

		require.NoError(t, s.Load(ctx))

		if diff := cmp.Diff(domain.SeedQuotes(), s.List()); diff != "" {
			t.Errorf("collection mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, domain.SeedQuotes(), s.storedCollection(t))
	})

	t.Run("stored collection is restored in order", func(t *testing.T) {
		s := newTestStore(t, nil)
		stored := []byte(`[{"text":"b","category":"X","author":"unknown"},{"text":"a","category":"Y","author":"Ann"}]`)
		require.NoError(t, s.durable.Set(ctx, DefaultCollectionKey, stored))

		require.NoError(t, s.Load(ctx))

		assert.Equal(t, []domain.Quote{
			{Text: "b", Category: "X", Author: "unknown"},
			{Text: "a", Category: "Y", Author: "Ann"},
		}, s.List())
	})

	t.Run("stored empty collection stays empty", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, s.durable.Set(ctx, DefaultCollectionKey, []byte("[]\n")))

		require.NoError(t, s.Load(ctx))

		assert.Zero(t, s.Len())
		assert.Equal(t, []string{domain.CategoryAll}, s.Categories())
	})

	t.Run("corrupt collection falls back to defaults", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, s.durable.Set(ctx, DefaultCollectionKey, []byte("{oops")))

		require.NoError(t, s.Load(ctx))

		assert.Equal(t, domain.SeedQuotes(), s.List())
		assert.Equal(t, domain.SeedQuotes(), s.storedCollection(t))
	})

	t.Run("unreadable storage falls back to defaults", func(t *testing.T) {
		durable := mocks.NewMockSlotStore(t)
		durable.EXPECT().Get(mock.Anything, DefaultCollectionKey).Return(nil, errors.New("connection refused"))
		durable.EXPECT().Set(mock.Anything, DefaultCollectionKey, mock.Anything).Return(nil)

		s := newStoreOver(durable, newTestStore(t, nil).session, nil)

		require.NoError(t, s.Load(ctx))
		assert.Equal(t, 3, s.Len())
	})
}

func TestQuoteStore_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and persists", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, s.Load(ctx))

		got, err := s.Add(ctx, "  Stay hungry.  ", "Work", "")
		require.NoError(t, err)

		want := domain.Quote{Text: "Stay hungry.", Category: "Work", Author: domain.AuthorUnknown}
		assert.Equal(t, want, got)

		list := s.List()
		require.Len(t, list, 4)
		assert.Equal(t, want, list[3])
		assert.Equal(t, list, s.storedCollection(t))
	})

	t.Run("new category becomes selectable", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, s.Load(ctx))

		_, err := s.Add(ctx, "Stay hungry.", "Work", "Steve")
		require.NoError(t, err)

		assert.Equal(t, []string{"all", "motivation", "success", "inspiration", "work"}, s.Categories())
		assert.Len(t, s.Filter("work"), 1)
	})

	tests := []struct {
		name     string
		text     string
		category string
		reason   string
	}{
		{"blank text", "   ", "Work", domain.ReasonMissingText},
		{"blank category", "Stay hungry.", "", domain.ReasonMissingCategory},
		{"reserved category", "Stay hungry.", "All", domain.ReasonReservedCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, nil)
			require.NoError(t, s.Load(ctx))

			_, err := s.Add(ctx, tt.text, tt.category, "")
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, tt.reason, domain.ValidationReason(err))
			assert.Equal(t, domain.SeedQuotes(), s.List())
		})
	}
}

func TestQuoteStore_PickRandom(t *testing.T) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		s := loadedStore(t)

		_, ok := s.PickRandom(domain.CategoryAll)
		assert.False(t, ok)
	})

	t.Run("empty category", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)

		_, ok := s.PickRandom("Nonexistent")
		assert.False(t, ok)
	})

	t.Run("picks within the filtered set", func(t *testing.T) {
		var gotN int
		s := newTestStore(t, func(n int) int {
			gotN = n
			return n - 1
		})
		s.ReplaceAll(ctx, []domain.Quote{q("a", "X"), q("b", "Y"), q("c", "X")})

		got, ok := s.PickRandom("x")
		require.True(t, ok)
		assert.Equal(t, 2, gotN)
		assert.Equal(t, "c", got.Text)
	})

	t.Run("every record is reachable", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)

		seen := map[string]bool{}
		for range 500 {
			got, ok := s.PickRandom(domain.CategoryAll)
			require.True(t, ok)
			seen[got.Text] = true
		}

		assert.Len(t, seen, 3)
	})
}

func TestQuoteStore_ShowRandomAndLastShown(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func(int) int { return 0 })
	s.ReplaceAll(ctx, domain.SeedQuotes())

	_, err := s.LastShown(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	shown, ok := s.ShowRandom(ctx, "success")
	require.True(t, ok)
	assert.Equal(t, "Success", shown.Category)

	last, err := s.LastShown(ctx)
	require.NoError(t, err)
	assert.Equal(t, shown, last)

	_, ok = s.ShowRandom(ctx, "nothing-here")
	assert.False(t, ok)

	last, err = s.LastShown(ctx)
	require.NoError(t, err)
	assert.Equal(t, shown, last, "an empty pick leaves the last shown quote alone")
}

func TestQuoteStore_RestoreDefaults(t *testing.T) {
	ctx := context.Background()
	s := loadedStore(t, q("a", "X"))

	s.RestoreDefaults(ctx)

	assert.Equal(t, domain.SeedQuotes(), s.List())
	assert.Equal(t, domain.SeedQuotes(), s.storedCollection(t))
}

func TestQuoteStore_Merge(t *testing.T) {
	ctx := context.Background()
	s := loadedStore(t, q("local only", "Mine"), q("shared", "Mine"))

	remote := domain.Quote{ID: "posts-1", Text: "shared", Category: "server", Author: "user-1"}
	result := s.Merge(ctx, []domain.Quote{remote})

	assert.Equal(t, domain.ReconciliationResult{AppliedCount: 1, DiscardedLocalCount: 1}, result)
	assert.Equal(t, []domain.Quote{remote, q("local only", "Mine")}, s.List())
	assert.Equal(t, s.List(), s.storedCollection(t))
}

func TestQuoteStore_ExportImport(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip reproduces the collection", func(t *testing.T) {
		src := loadedStore(t, domain.SeedQuotes()...)
		_, err := src.Add(ctx, "Stay hungry.", "Work", "Steve")
		require.NoError(t, err)

		data, err := src.Export()
		require.NoError(t, err)

		dst := loadedStore(t)
		res, err := dst.Import(ctx, data, ImportReplace)
		require.NoError(t, err)

		assert.Equal(t, ImportResult{Imported: 4, Total: 4, Mode: ImportReplace}, res)
		assert.Equal(t, src.List(), dst.List())
	})

	t.Run("append keeps existing records first", func(t *testing.T) {
		s := loadedStore(t, q("a", "X"))

		res, err := s.Import(ctx, []byte(`["b", {"text":"c","category":"Y"}]`), "")
		require.NoError(t, err)

		assert.Equal(t, ImportResult{Imported: 2, Total: 3, Mode: ImportAppend}, res)
		assert.Equal(t, []domain.Quote{
			q("a", "X"),
			q("b", domain.CategoryUncategorized),
			q("c", "Y"),
		}, s.List())
		assert.Equal(t, s.List(), s.storedCollection(t))
	})

	t.Run("invalid element rejects the whole file", func(t *testing.T) {
		s := loadedStore(t, q("a", "X"))

		_, err := s.Import(ctx, []byte(`["b", 42, "c"]`), ImportAppend)
		require.Error(t, err)

		var ie *domain.ImportError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, domain.ReasonInvalidElement, ie.Reason)
		assert.Equal(t, 1, ie.Index)
		assert.True(t, domain.IsImport(err))

		assert.Equal(t, []domain.Quote{q("a", "X")}, s.List())
		assert.Equal(t, []domain.Quote{q("a", "X")}, s.storedCollection(t))
	})

	t.Run("non array is rejected", func(t *testing.T) {
		s := loadedStore(t, q("a", "X"))

		_, err := s.Import(ctx, []byte(`{"text":"b"}`), ImportReplace)

		var ie *domain.ImportError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, domain.ReasonNotASequence, ie.Reason)
		assert.Equal(t, []domain.Quote{q("a", "X")}, s.List())
	})

	t.Run("unknown mode is a validation error", func(t *testing.T) {
		s := loadedStore(t)

		_, err := s.Import(ctx, []byte(`[]`), ImportMode("merge"))
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))

		step, ok := GetExecutionStep(err)
		require.True(t, ok)
		assert.Equal(t, StepValidate, step)
	})
}

func TestParseImportMode(t *testing.T) {
	for in, want := range map[string]ImportMode{"": ImportAppend, "append": ImportAppend, "replace": ImportReplace} {
		got, err := ParseImportMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseImportMode("REPLACE")
	assert.True(t, domain.IsValidation(err))
}

func TestQuoteStore_SelectedFilter(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to all", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)
		assert.Equal(t, domain.CategoryAll, s.SelectedFilter(ctx))
	})

	t.Run("set persists the normalized key", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)

		got, err := s.SetSelectedFilter(ctx, " Motivation ")
		require.NoError(t, err)
		assert.Equal(t, "motivation", got)
		assert.Equal(t, "motivation", s.SelectedFilter(ctx))

		raw, err := s.durable.Get(ctx, DefaultSelectedFilterKey)
		require.NoError(t, err)
		assert.Equal(t, "motivation", string(raw))
	})

	t.Run("all is always accepted", func(t *testing.T) {
		s := loadedStore(t)

		got, err := s.SetSelectedFilter(ctx, "ALL")
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryAll, got)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)

		_, err := s.SetSelectedFilter(ctx, "Cooking")
		require.Error(t, err)
		assert.Equal(t, domain.ReasonUnknownCategory, domain.ValidationReason(err))
		assert.Equal(t, domain.CategoryAll, s.SelectedFilter(ctx))
	})

	t.Run("vanished category degrades to all", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)
		_, err := s.SetSelectedFilter(ctx, "Success")
		require.NoError(t, err)

		s.ReplaceAll(ctx, []domain.Quote{q("a", "Motivation")})

		assert.Equal(t, domain.CategoryAll, s.SelectedFilter(ctx))
	})
}

func TestQuoteStore_WriteFailureKeepsMemoryAndReportsUnhealthy(t *testing.T) {
	ctx := context.Background()

	durable := mocks.NewMockSlotStore(t)
	durable.EXPECT().Get(mock.Anything, DefaultCollectionKey).Return(nil, nil).Once()
	durable.EXPECT().Set(mock.Anything, DefaultCollectionKey, mock.Anything).Return(nil).Once()
	durable.EXPECT().Set(mock.Anything, DefaultCollectionKey, mock.Anything).Return(errors.New("disk full")).Once()
	durable.EXPECT().Set(mock.Anything, DefaultCollectionKey, mock.Anything).Return(nil).Once()

	s := newStoreOver(durable, newTestStore(t, nil).session, nil)
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Check(ctx))
	assert.Equal(t, "quote-store", s.Name())

	_, err := s.Add(ctx, "first", "Work", "")
	require.NoError(t, err, "a failed write is not a failed add")
	assert.Equal(t, 4, s.Len())

	err = s.Check(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsStorage(err))
	assert.Contains(t, err.Error(), "disk full")

	_, err = s.Add(ctx, "second", "Work", "")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
	assert.NoError(t, s.Check(ctx), "a later successful write clears the failure")
}

func TestQuoteStore_WriteFailureIsTrackedPerSlot(t *testing.T) {
	ctx := context.Background()

	session := mocks.NewMockSlotStore(t)
	session.EXPECT().Set(mock.Anything, DefaultLastShownKey, mock.Anything).Return(errors.New("session gone")).Once()
	session.EXPECT().Set(mock.Anything, DefaultLastShownKey, mock.Anything).Return(nil).Once()

	s := newStoreOver(storage.NewMemoryStore(), session, func(int) int { return 0 })
	s.ReplaceAll(ctx, domain.SeedQuotes())

	_, ok := s.ShowRandom(ctx, domain.CategoryAll)
	require.True(t, ok)

	err := s.Check(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsStorage(err))
	assert.Contains(t, err.Error(), "session gone")

	_, err = s.Add(ctx, "Keep going.", "Work", "")
	require.NoError(t, err)
	require.Error(t, s.Check(ctx), "a collection write does not clear the last shown slot")

	_, ok = s.ShowRandom(ctx, domain.CategoryAll)
	require.True(t, ok)
	assert.NoError(t, s.Check(ctx))
}

// stallingSlotStore holds the first collection write after arm until
// release is closed.
type stallingSlotStore struct {
	*storage.MemoryStore

	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newStallingSlotStore() *stallingSlotStore {
	return &stallingSlotStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (s *stallingSlotStore) Set(ctx context.Context, key string, value []byte) error {
	if key == DefaultCollectionKey && s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}

	return s.MemoryStore.Set(ctx, key, value)
}

func TestQuoteStore_ConcurrentAddsReachStorageInOrder(t *testing.T) {
	ctx := context.Background()

	durable := newStallingSlotStore()
	s := testStore{
		QuoteStore: newStoreOver(durable, storage.NewMemoryStore(), nil),
		durable:    durable.MemoryStore,
	}
	require.NoError(t, s.Load(ctx))

	durable.armed.Store(true)

	var wg sync.WaitGroup

	wg.Go(func() {
		_, err := s.Add(ctx, "X", "Work", "")
		assert.NoError(t, err)
	})

	<-durable.entered

	wg.Go(func() {
		_, err := s.Add(ctx, "Y", "Work", "")
		assert.NoError(t, err)
	})

	assert.Never(t, func() bool { return s.Len() == 5 }, 50*time.Millisecond, 5*time.Millisecond,
		"a second add must wait for the stalled write")

	close(durable.release)
	wg.Wait()

	list := s.List()
	require.Len(t, list, 5)
	assert.Equal(t, "X", list[3].Text)
	assert.Equal(t, "Y", list[4].Text)

	if diff := cmp.Diff(list, s.storedCollection(t)); diff != "" {
		t.Errorf("storage lags memory (-memory +stored):\n%s", diff)
	}
}

func TestQuoteStore_PublishExport(t *testing.T) {
	ctx := context.Background()

	t.Run("hands the export to the sink", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)
		want, err := s.Export()
		require.NoError(t, err)

		sink := mocks.NewMockExportSink(t)
		sink.EXPECT().Publish(mock.Anything, exchange.FileName, want).Return("/tmp/quotes.json", nil).Once()

		got, err := s.PublishExport(ctx, sink)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/quotes.json", got)
	})

	t.Run("sink failure is wrapped", func(t *testing.T) {
		s := loadedStore(t, domain.SeedQuotes()...)

		sink := mocks.NewMockExportSink(t)
		sink.EXPECT().Publish(mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone")).Once()

		_, err := s.PublishExport(ctx, sink)
		require.ErrorContains(t, err, "publishing export: bucket gone")
	})

	t.Run("no sink configured", func(t *testing.T) {
		_, err := loadedStore(t).PublishExport(ctx, nil)
		assert.True(t, domain.IsUnavailable(err))
	})
}
