// Package app contains the quote store and the use cases built on it.
//
// The store is the single owner of the collection. HTTP handlers, the CLI and
// the background syncer all go through it, and every mutation is persisted
// before the method returns. A failed write does not undo the in-memory
// change: the store keeps serving what it holds, logs the failure, and
// reports itself degraded through its health check until a later write
// succeeds.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/exchange"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const instrumentationName = "github.com/jsamuelsen/quote-keeper/internal/app"

// ImportMode selects how imported records combine with the collection.
type ImportMode string

const (
	// ImportAppend adds imported records after the existing ones.
	ImportAppend ImportMode = "append"

	// ImportReplace swaps the collection for the imported records.
	ImportReplace ImportMode = "replace"
)

// ParseImportMode maps user input to an ImportMode. Empty means append.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ImportAppend:
		return ImportAppend, nil
	case ImportReplace:
		return ImportReplace, nil
	default:
		return "", domain.NewValidationErrorWithValue("mode", domain.ReasonInvalidType,
			"must be append or replace", s)
	}
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Imported int
	Total    int
	Mode     ImportMode
}

// QuoteStoreConfig contains the store's dependencies.
type QuoteStoreConfig struct {
	Persistence *Persistence
	Executor    *Executor
	Logger      *slog.Logger

	// IntN picks a random index in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// QuoteStore owns the ordered quote collection.
//
// mu guards quotes. persistMu is held from a collection swap through its
// slot write, so writes reach storage in the order the mutations happened.
// Reads only take mu and never wait on storage.
type QuoteStore struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	quotes    []domain.Quote

	persistence *Persistence
	exec        *Executor
	logger      *slog.Logger
	intN        func(int) int

	writeMu       sync.Mutex
	writeErrs     map[string]error
	writeFailures metric.Int64Counter
}

// NewQuoteStore creates an empty store. Call Load before serving.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Persistence == nil {
		panic("app: QuoteStore requires Persistence")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "app.QuoteStore"))

	exec := cfg.Executor
	if exec == nil {
		exec = NewExecutor(logger)
	}

	intN := cfg.IntN
	if intN == nil {
		intN = rand.IntN
	}

	// The global meter provider never returns an error for a valid name.
	writeFailures, _ := otel.Meter(instrumentationName).Int64Counter(
		"quotes.persist.failures",
		metric.WithDescription("Slot writes that failed and left the store ahead of storage"),
	)

	return &QuoteStore{
		persistence:   cfg.Persistence,
		exec:          exec,
		logger:        logger,
		intN:          intN,
		writeErrs:     make(map[string]error),
		writeFailures: writeFailures,
	}
}

// Load rehydrates the collection from durable storage. A missing or
// unreadable collection is replaced by the seed quotes.
func (s *QuoteStore) Load(ctx context.Context) error {
	logger := s.loggerFor(ctx)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	quotes, err := s.persistence.LoadCollection(ctx)
	if err != nil {
		logger.WarnContext(ctx, "stored collection unreadable, starting from defaults", slog.Any("error", err))
	}

	seeded := quotes == nil
	if seeded {
		quotes = domain.SeedQuotes()
	}

	s.mu.Lock()
	s.quotes = quotes
	s.mu.Unlock()

	logger.InfoContext(ctx, "collection loaded",
		slog.Int("count", len(quotes)),
		slog.Bool("seeded", seeded),
	)

	if seeded {
		s.persist(ctx, quotes)
	}

	return nil
}

// Add validates and appends a new record.
func (s *QuoteStore) Add(ctx context.Context, text, category, author string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category, author)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("adding quote: %w", err)
	}

	snapshot := s.mutate(ctx, func(quotes []domain.Quote) []domain.Quote {
		return append(quotes, q)
	})

	s.loggerFor(ctx).InfoContext(ctx, "quote added",
		slog.String("category", q.CategoryKey()),
		slog.Int("count", len(snapshot)),
	)

	return q, nil
}

// List returns a copy of the collection in order.
func (s *QuoteStore) List() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Len returns the number of records.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// Categories returns "all" followed by the distinct category keys.
func (s *QuoteStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Categories(s.quotes)
}

// Filter returns the records in the selected category, in order.
func (s *QuoteStore) Filter(selector string) []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Filter(s.quotes, selector)
}

// PickRandom returns a uniformly chosen record from the selected category.
// The boolean is false when the category is empty.
func (s *QuoteStore) PickRandom(selector string) (domain.Quote, bool) {
	candidates := s.Filter(selector)
	if len(candidates) == 0 {
		return domain.Quote{}, false
	}

	return candidates[s.intN(len(candidates))], true
}

// ShowRandom picks a record and remembers it as the last shown quote.
func (s *QuoteStore) ShowRandom(ctx context.Context, selector string) (domain.Quote, bool) {
	q, ok := s.PickRandom(selector)
	if !ok {
		return domain.Quote{}, false
	}

	s.recordWrite(ctx, s.persistence.keys.LastShown, s.persistence.SaveLastShown(ctx, q))

	return q, true
}

// LastShown returns the quote most recently returned by ShowRandom in this
// session.
func (s *QuoteStore) LastShown(ctx context.Context) (domain.Quote, error) {
	q, err := s.persistence.LoadLastShown(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	if q == nil {
		return domain.Quote{}, domain.NewNotFoundError("last shown quote", "")
	}

	return *q, nil
}

// ReplaceAll swaps the collection wholesale and persists it.
func (s *QuoteStore) ReplaceAll(ctx context.Context, quotes []domain.Quote) {
	replacement := make([]domain.Quote, len(quotes))
	copy(replacement, quotes)

	s.mutate(ctx, func([]domain.Quote) []domain.Quote {
		return replacement
	})
}

// RestoreDefaults replaces the collection with the seed quotes.
func (s *QuoteStore) RestoreDefaults(ctx context.Context) {
	s.ReplaceAll(ctx, domain.SeedQuotes())
	s.loggerFor(ctx).InfoContext(ctx, "collection restored to defaults")
}

// Merge reconciles candidates over the collection and persists the result.
func (s *QuoteStore) Merge(ctx context.Context, candidates []domain.Quote) domain.ReconciliationResult {
	var result domain.ReconciliationResult

	s.mutate(ctx, func(quotes []domain.Quote) []domain.Quote {
		var merged []domain.Quote
		merged, result = domain.Reconcile(quotes, candidates)

		return merged
	})

	return result
}

// Export renders the collection in its portable file form.
func (s *QuoteStore) Export() ([]byte, error) {
	data, err := exchange.Export(s.List())
	if err != nil {
		return nil, fmt.Errorf("exporting collection: %w", err)
	}

	return data, nil
}

// PublishExport exports the collection and hands it to sink under
// exchange.FileName. Returns where the sink put it.
func (s *QuoteStore) PublishExport(ctx context.Context, sink ports.ExportSink) (string, error) {
	if sink == nil {
		return "", domain.NewUnavailableError("export-sink", "no export sink configured")
	}

	data, err := s.Export()
	if err != nil {
		return "", err
	}

	location, err := sink.Publish(ctx, exchange.FileName, data)
	if err != nil {
		return "", fmt.Errorf("publishing export: %w", err)
	}

	s.loggerFor(ctx).InfoContext(ctx, "export published",
		slog.String("location", location),
		slog.Int("bytes", len(data)),
	)

	return location, nil
}

type importInput struct {
	data []byte
	mode ImportMode
}

// Import parses data and applies it to the collection. A rejected payload
// leaves the collection untouched; the returned error wraps the
// *domain.ImportError describing why.
func (s *QuoteStore) Import(ctx context.Context, data []byte, mode ImportMode) (ImportResult, error) {
	op := Operation[importInput, []domain.Quote, []domain.Quote, ImportResult]{
		Name: "ImportQuotes",
		Validate: func(_ context.Context, in importInput) error {
			_, err := ParseImportMode(string(in.mode))
			return err
		},
		Perform: func(_ context.Context, in importInput) ([]domain.Quote, error) {
			return exchange.Import(in.data)
		},
		Verify: func(_ context.Context, _ importInput, imported []domain.Quote) ([]domain.Quote, error) {
			for i, q := range imported {
				if q.TextKey() == "" || q.CategoryKey() == "" {
					return nil, domain.NewInvalidElementError(i,
						domain.NewValidationError("text", domain.ReasonMissingText, "normalized record is empty"))
				}
			}

			return imported, nil
		},
		Archive: func(ctx context.Context, in importInput, imported []domain.Quote) error {
			s.mutate(ctx, func(quotes []domain.Quote) []domain.Quote {
				if in.mode == ImportReplace {
					return append([]domain.Quote(nil), imported...)
				}

				return append(quotes, imported...)
			})

			return nil
		},
		Respond: func(_ context.Context, in importInput, imported []domain.Quote) (ImportResult, error) {
			return ImportResult{Imported: len(imported), Total: s.Len(), Mode: in.mode}, nil
		},
	}

	if mode == "" {
		mode = ImportAppend
	}

	return Execute(ctx, s.exec, op, importInput{data: data, mode: mode})
}

// SelectedFilter returns the persisted category filter. It falls back to
// "all" when nothing is stored or the stored category no longer exists.
func (s *QuoteStore) SelectedFilter(ctx context.Context) string {
	selector, err := s.persistence.LoadSelectedFilter(ctx)
	if err != nil {
		s.loggerFor(ctx).WarnContext(ctx, "selected filter unreadable", slog.Any("error", err))
		return domain.CategoryAll
	}

	if domain.IsAllSelector(selector) {
		return domain.CategoryAll
	}

	s.mu.RLock()
	present := domain.HasCategory(s.quotes, selector)
	s.mu.RUnlock()

	if !present {
		return domain.CategoryAll
	}

	return domain.NormalizeCategory(selector)
}

// SetSelectedFilter persists selector, which must be "all" or a present
// category.
func (s *QuoteStore) SetSelectedFilter(ctx context.Context, selector string) (string, error) {
	key := domain.NormalizeCategory(selector)
	if domain.IsAllSelector(key) {
		key = domain.CategoryAll
	} else {
		s.mu.RLock()
		present := domain.HasCategory(s.quotes, key)
		s.mu.RUnlock()

		if !present {
			return "", domain.NewValidationErrorWithValue("category", domain.ReasonUnknownCategory,
				"no quotes in this category", selector)
		}
	}

	err := s.persistence.SaveSelectedFilter(ctx, key)
	s.recordWrite(ctx, s.persistence.keys.SelectedFilter, err)

	if err != nil {
		return "", fmt.Errorf("saving selected filter: %w", err)
	}

	return key, nil
}

// Name implements ports.HealthChecker.
func (s *QuoteStore) Name() string {
	return "quote-store"
}

// Check reports every slot whose most recent write failed. A slot recovers
// on its next successful write.
func (s *QuoteStore) Check(_ context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(s.writeErrs) == 0 {
		return nil
	}

	slots := slices.Sorted(maps.Keys(s.writeErrs))
	errs := make([]error, 0, len(slots))

	for _, slot := range slots {
		errs = append(errs, s.writeErrs[slot])
	}

	return fmt.Errorf("store ahead of storage: %w", errors.Join(errs...))
}

// mutate applies fn to the collection and persists the result. Callers must
// not hold mu.
func (s *QuoteStore) mutate(ctx context.Context, fn func([]domain.Quote) []domain.Quote) []domain.Quote {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.quotes = fn(s.quotes)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)

	return snapshot
}

// persist writes snapshot to the collection slot. Callers hold persistMu.
func (s *QuoteStore) persist(ctx context.Context, snapshot []domain.Quote) {
	s.recordWrite(ctx, s.persistence.keys.Collection, s.persistence.SaveCollection(ctx, snapshot))
}

// recordWrite tracks the outcome of a write to slot for Check.
func (s *QuoteStore) recordWrite(ctx context.Context, slot string, err error) {
	if err == nil {
		s.writeMu.Lock()
		delete(s.writeErrs, slot)
		s.writeMu.Unlock()

		return
	}

	s.loggerFor(ctx).ErrorContext(ctx, "persisting to slot failed, continuing in memory",
		slog.String("slot", slot),
		slog.Any("error", err),
	)

	if s.writeFailures != nil {
		s.writeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("slot", slot)))
	}

	s.writeMu.Lock()
	s.writeErrs[slot] = err
	s.writeMu.Unlock()
}

func (s *QuoteStore) snapshotLocked() []domain.Quote {
	out := make([]domain.Quote, len(s.quotes))
	copy(out, s.quotes)

	return out
}

func (s *QuoteStore) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := logging.Lookup(ctx); ok {
		return logger.With(slog.String("component", "app.QuoteStore"))
	}

	return s.logger
}
