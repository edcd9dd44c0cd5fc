package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// ErrSyncInFlight is returned by SyncOnce while another cycle is running.
var ErrSyncInFlight = domain.NewConflictError("sync", "a sync cycle is already running")

// Sync run outcomes recorded on the quotes.sync.runs counter.
const (
	syncResultOK      = "ok"
	syncResultSkipped = "skipped"
	syncResultError   = "error"
)

// SyncResult describes one completed sync cycle.
type SyncResult struct {
	RunID          string
	Sources        []string
	Fetched        int
	Dropped        int
	Applied        int
	DiscardedLocal int
	Total          int
	Duration       time.Duration
}

// SyncerConfig contains the syncer's dependencies.
type SyncerConfig struct {
	Store   *QuoteStore
	Sources []ports.QuoteSource

	// Interval between cycles in Run. Must be positive for Run.
	Interval time.Duration

	// SyncOnStart runs one cycle as soon as Run starts.
	SyncOnStart bool

	// Concurrency bounds how many sources are fetched at once. Zero means all.
	Concurrency int

	Executor *Executor
	Logger   *slog.Logger
}

// Syncer periodically pulls candidates from remote sources and merges them
// into the store. At most one cycle runs at a time; a trigger that arrives
// while a cycle is in flight is skipped, not queued. A failed cycle leaves
// the collection untouched and the next tick simply tries again.
type Syncer struct {
	store       *QuoteStore
	sources     []ports.QuoteSource
	interval    time.Duration
	syncOnStart bool
	concurrency int
	exec        *Executor
	logger      *slog.Logger

	inFlight atomic.Bool

	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSyncer creates a syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, errors.New("syncer requires a store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "app.Syncer"))

	exec := cfg.Executor
	if exec == nil {
		exec = NewExecutor(logger)
	}

	meter := otel.Meter(instrumentationName)

	runs, err := meter.Int64Counter(
		"quotes.sync.runs",
		metric.WithDescription("Sync cycles by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sync run counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"quotes.sync.duration",
		metric.WithDescription("Duration of completed sync cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sync duration metric: %w", err)
	}

	return &Syncer{
		store:       cfg.Store,
		sources:     cfg.Sources,
		interval:    cfg.Interval,
		syncOnStart: cfg.SyncOnStart,
		concurrency: cfg.Concurrency,
		exec:        exec,
		logger:      logger,
		runs:        runs,
		duration:    duration,
	}, nil
}

// InFlight reports whether a cycle is running right now.
func (s *Syncer) InFlight() bool {
	return s.inFlight.Load()
}

type syncInput struct {
	runID string
	start time.Time
}

type fetched struct {
	source string
	quotes []domain.Quote
}

type verifiedCandidates struct {
	candidates []domain.Quote
	fetched    int
	dropped    int
	result     domain.ReconciliationResult
}

// SyncOnce runs a single cycle: fetch every source, verify the candidates,
// then merge them into the store. If any source fails nothing is merged.
func (s *Syncer) SyncOnce(ctx context.Context) (SyncResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", syncResultSkipped)))
		return SyncResult{}, ErrSyncInFlight
	}
	defer s.inFlight.Store(false)

	runID := uuid.NewString()
	ctx = logging.WithSyncRun(logging.WithContext(ctx, s.loggerFor(ctx)), runID)

	op := Operation[syncInput, []fetched, *verifiedCandidates, SyncResult]{
		Name: "SyncQuotes",
		Validate: func(_ context.Context, _ syncInput) error {
			if len(s.sources) == 0 {
				return domain.NewValidationError("sources", "", "no quote sources configured")
			}

			return nil
		},
		Perform: s.fetchAll,
		Verify: func(ctx context.Context, _ syncInput, results []fetched) (*verifiedCandidates, error) {
			return s.verify(ctx, results), nil
		},
		Archive: func(ctx context.Context, _ syncInput, v *verifiedCandidates) error {
			v.result = s.store.Merge(ctx, v.candidates)
			return nil
		},
		Respond: func(_ context.Context, in syncInput, v *verifiedCandidates) (SyncResult, error) {
			names := make([]string, len(s.sources))
			for i, src := range s.sources {
				names[i] = src.Name()
			}

			return SyncResult{
				RunID:          in.runID,
				Sources:        names,
				Fetched:        v.fetched,
				Dropped:        v.dropped,
				Applied:        v.result.AppliedCount,
				DiscardedLocal: v.result.DiscardedLocalCount,
				Total:          s.store.Len(),
				Duration:       time.Since(in.start),
			}, nil
		},
	}

	result, err := Execute(ctx, s.exec, op, syncInput{runID: runID, start: time.Now()})
	if err != nil {
		s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", syncResultError)))
		return SyncResult{}, fmt.Errorf("sync run %s: %w", runID, err)
	}

	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", syncResultOK)))
	s.duration.Record(ctx, result.Duration.Seconds())

	return result, nil
}

func (s *Syncer) fetchAll(ctx context.Context, _ syncInput) ([]fetched, error) {
	fns := make([]func(context.Context) (fetched, error), len(s.sources))

	for i, src := range s.sources {
		fns[i] = func(ctx context.Context) (fetched, error) {
			quotes, err := src.FetchCandidates(ctx)
			if err != nil {
				return fetched{}, fmt.Errorf("fetching from %s: %w", src.Name(), err)
			}

			return fetched{source: src.Name(), quotes: quotes}, nil
		}
	}

	return ParallelLimit(ctx, s.concurrency, fns...)
}

// verify flattens source results in configuration order and drops records a
// source should never have produced.
func (s *Syncer) verify(ctx context.Context, results []fetched) *verifiedCandidates {
	v := &verifiedCandidates{}
	logger := logging.FromContext(ctx)

	for _, r := range results {
		v.fetched += len(r.quotes)

		for _, q := range r.quotes {
			if q.TextKey() == "" || q.CategoryKey() == "" {
				v.dropped++
				continue
			}

			v.candidates = append(v.candidates, q)
		}
	}

	if v.dropped > 0 {
		logger.WarnContext(ctx, "dropped invalid candidates", slog.Int("dropped", v.dropped))
	}

	return v
}

// Run syncs every interval until ctx is cancelled. Errors are logged and the
// next tick retries; there is no backoff.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}

	s.logger.InfoContext(ctx, "sync loop started",
		slog.Duration("interval", s.interval),
		slog.Int("sources", len(s.sources)),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.syncOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.WithoutCancel(ctx), "sync loop stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	result, err := s.SyncOnce(ctx)

	switch {
	case errors.Is(err, ErrSyncInFlight):
		s.logger.DebugContext(ctx, "sync skipped, previous cycle still running")
	case ctx.Err() != nil:
		// Shutting down; the abandoned fetch is not worth reporting.
	case err != nil:
		s.logger.WarnContext(ctx, "sync failed, will retry next tick", slog.Any("error", err))
	default:
		s.logger.InfoContext(ctx, "sync completed",
			slog.String("run_id", result.RunID),
			slog.Int("applied", result.Applied),
			slog.Int("discarded_local", result.DiscardedLocal),
			slog.Int("total", result.Total),
			slog.Duration("duration", result.Duration),
		)
	}
}

func (s *Syncer) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := logging.Lookup(ctx); ok {
		return logger.With(slog.String("component", "app.Syncer"))
	}

	return s.logger
}
