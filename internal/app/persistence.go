package app

import (
	"context"
	"encoding/json"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/exchange"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Default slot keys.
const (
	DefaultCollectionKey     = "quotes"
	DefaultSelectedFilterKey = "selectedCategory"
	DefaultLastShownKey      = "lastViewedQuote"
)

// SlotKeys names the slots the persistence layer reads and writes.
type SlotKeys struct {
	Collection     string
	SelectedFilter string
	LastShown      string
}

func (k SlotKeys) withDefaults() SlotKeys {
	if k.Collection == "" {
		k.Collection = DefaultCollectionKey
	}

	if k.SelectedFilter == "" {
		k.SelectedFilter = DefaultSelectedFilterKey
	}

	if k.LastShown == "" {
		k.LastShown = DefaultLastShownKey
	}

	return k
}

// Persistence maps the store's state onto slots. The collection and the
// selected filter live in the durable store; the last shown quote lives in
// the session store and is gone when the process exits.
type Persistence struct {
	durable ports.SlotStore
	session ports.SlotStore
	keys    SlotKeys
}

// NewPersistence creates a persistence adapter. Empty keys take their defaults.
func NewPersistence(durable, session ports.SlotStore, keys SlotKeys) *Persistence {
	if durable == nil {
		panic("app: durable slot store is required")
	}

	if session == nil {
		panic("app: session slot store is required")
	}

	return &Persistence{durable: durable, session: session, keys: keys.withDefaults()}
}

// LoadCollection returns the stored collection. An empty slot yields
// (nil, nil); unreadable or malformed content yields a StorageError so the
// caller can fall back to the seed.
func (p *Persistence) LoadCollection(ctx context.Context) ([]domain.Quote, error) {
	data, err := p.durable.Get(ctx, p.keys.Collection)
	if err != nil {
		return nil, domain.NewStorageReadError(p.keys.Collection, err)
	}

	if data == nil {
		return nil, nil
	}

	quotes, err := exchange.Import(data)
	if err != nil {
		return nil, domain.NewStorageReadError(p.keys.Collection, err)
	}

	return quotes, nil
}

// SaveCollection replaces the stored collection in one write.
func (p *Persistence) SaveCollection(ctx context.Context, quotes []domain.Quote) error {
	data, err := exchange.Export(quotes)
	if err != nil {
		return domain.NewStorageWriteError(p.keys.Collection, err)
	}

	if err := p.durable.Set(ctx, p.keys.Collection, data); err != nil {
		return domain.NewStorageWriteError(p.keys.Collection, err)
	}

	return nil
}

// LoadLastShown returns the last shown quote, or nil when none was recorded.
func (p *Persistence) LoadLastShown(ctx context.Context) (*domain.Quote, error) {
	data, err := p.session.Get(ctx, p.keys.LastShown)
	if err != nil {
		return nil, domain.NewStorageReadError(p.keys.LastShown, err)
	}

	if data == nil {
		return nil, nil
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, domain.NewStorageReadError(p.keys.LastShown, err)
	}

	return &q, nil
}

// SaveLastShown records q as the last shown quote.
func (p *Persistence) SaveLastShown(ctx context.Context, q domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return domain.NewStorageWriteError(p.keys.LastShown, err)
	}

	if err := p.session.Set(ctx, p.keys.LastShown, data); err != nil {
		return domain.NewStorageWriteError(p.keys.LastShown, err)
	}

	return nil
}

// LoadSelectedFilter returns the stored selector, or "all" when none is stored.
func (p *Persistence) LoadSelectedFilter(ctx context.Context) (string, error) {
	data, err := p.durable.Get(ctx, p.keys.SelectedFilter)
	if err != nil {
		return domain.CategoryAll, domain.NewStorageReadError(p.keys.SelectedFilter, err)
	}

	if len(data) == 0 {
		return domain.CategoryAll, nil
	}

	return string(data), nil
}

// SaveSelectedFilter stores selector.
func (p *Persistence) SaveSelectedFilter(ctx context.Context, selector string) error {
	if err := p.durable.Set(ctx, p.keys.SelectedFilter, []byte(selector)); err != nil {
		return domain.NewStorageWriteError(p.keys.SelectedFilter, err)
	}

	return nil
}

