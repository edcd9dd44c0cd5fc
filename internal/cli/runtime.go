package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/export"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// sessionScope says where the last shown quote lives.
type sessionScope int

const (
	// sessionInMemory keeps it for the life of the process, as the server does.
	sessionInMemory sessionScope = iota

	// sessionDurable keeps it in the durable store so that "last" works
	// across separate CLI invocations.
	sessionDurable
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	slots   storage.Store
	store   *app.QuoteStore
	syncer  *app.Syncer
	sink    ports.ExportSink
	sources []ports.QuoteSource
	health  *ports.DefaultHealthRegistry
}

// openRuntime opens storage, loads the collection and builds the syncer and
// export sink described by cfg. The caller must Close the runtime.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, scope sessionScope) (*runtime, error) {
	slots, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		slots:  slots,
		health: ports.NewHealthRegistry(cfg.Client.Timeout),
	}

	if err := rt.wire(ctx, scope); err != nil {
		return nil, errors.Join(err, rt.Close())
	}

	return rt, nil
}

func (rt *runtime) wire(ctx context.Context, scope sessionScope) error {
	var session ports.SlotStore = storage.NewMemoryStore()
	if scope == sessionDurable {
		session = rt.slots
	}

	keys := rt.cfg.Storage.Keys
	exec := app.NewExecutor(rt.logger)

	rt.store = app.NewQuoteStore(app.QuoteStoreConfig{
		Persistence: app.NewPersistence(rt.slots, session, app.SlotKeys{
			Collection:     keys.Collection,
			SelectedFilter: keys.SelectedFilter,
			LastShown:      keys.LastShown,
		}),
		Executor: exec,
		Logger:   rt.logger,
	})

	if err := rt.store.Load(ctx); err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}

	if err := rt.health.Register(rt.slots); err != nil {
		return err
	}

	if err := rt.health.Register(rt.store); err != nil {
		return err
	}

	if err := rt.wireSources(); err != nil {
		return err
	}

	if len(rt.sources) > 0 {
		syncer, err := app.NewSyncer(app.SyncerConfig{
			Store:       rt.store,
			Sources:     rt.sources,
			Interval:    rt.cfg.Sync.Interval,
			SyncOnStart: rt.cfg.Sync.OnStart,
			Concurrency: rt.cfg.Sync.Concurrency,
			Executor:    exec,
			Logger:      rt.logger,
		})
		if err != nil {
			return fmt.Errorf("creating syncer: %w", err)
		}

		rt.syncer = syncer
	}

	sink, err := export.Open(ctx, rt.cfg.Export)
	if err != nil {
		return fmt.Errorf("opening export sink: %w", err)
	}

	rt.sink = sink

	return nil
}

// wireSources builds the remote quote source when it is enabled. Sources
// are optional health checks: the store keeps serving while one is down.
func (rt *runtime) wireSources() error {
	sc := rt.cfg.Services.Quote
	if !sc.Enabled {
		return nil
	}

	client, err := clients.New(clients.ConfigFrom(rt.cfg.Client, sc.BaseURL, sc.Name, rt.logger))
	if err != nil {
		return fmt.Errorf("creating %s client: %w", sc.Name, err)
	}

	source, err := acl.NewPostsSource(acl.PostsSourceConfigFrom(sc, client, rt.logger))
	if err != nil {
		return fmt.Errorf("creating %s source: %w", sc.Name, err)
	}

	if err := rt.health.RegisterOptional(source); err != nil {
		return err
	}

	rt.sources = append(rt.sources, source)

	return nil
}

// Close releases the slot store.
func (rt *runtime) Close() error {
	if rt.slots == nil {
		return nil
	}

	if err := rt.slots.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}

	return nil
}
