package acl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

const (
	// DefaultPostsCategory is assigned to every fetched record unless configured.
	DefaultPostsCategory = "server"

	fetchOperation = "fetch posts"
)

// PostsSourceConfig configures a PostsSource.
type PostsSourceConfig struct {
	// Client is the instrumented client; its BaseURL points at the API root.
	Client *clients.Client

	// Path is the listing endpoint, e.g. "/posts".
	Path string

	// Category is stamped on every record.
	Category string

	// MaxItems caps the records taken per fetch. Zero means
	// config.DefaultQuoteSourceMaxItems.
	MaxItems int

	Logger *slog.Logger
}

// PostsSourceConfigFrom maps the services.quote config section onto a
// PostsSourceConfig.
func PostsSourceConfigFrom(c config.QuoteSourceConfig, client *clients.Client, logger *slog.Logger) PostsSourceConfig {
	return PostsSourceConfig{
		Client:   client,
		Path:     c.Path,
		Category: c.Category,
		MaxItems: c.MaxItems,
		Logger:   logger,
	}
}

// post is the jsonplaceholder /posts item.
type post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// PostsSource reads a jsonplaceholder-style posts listing and offers each
// post title as a candidate quote.
type PostsSource struct {
	BaseAdapter

	path     string
	category string
	maxItems int
	logger   *slog.Logger
}

// NewPostsSource creates a source. Panics if Client is nil. Returns a
// validation error when the configured category is unusable.
func NewPostsSource(cfg PostsSourceConfig) (*PostsSource, error) {
	if cfg.Client == nil {
		panic("PostsSource: Client is required")
	}

	category := strings.TrimSpace(cfg.Category)
	if category == "" {
		category = DefaultPostsCategory
	}

	// Probe the category through the same rule user input goes through.
	if _, err := domain.NewQuote("probe", category, ""); err != nil {
		return nil, fmt.Errorf("posts source category: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = "/posts"
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = config.DefaultQuoteSourceMaxItems
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PostsSource{
		BaseAdapter: NewBaseAdapter(cfg.Client, cfg.Client.ServiceName()),
		path:        path,
		category:    category,
		maxItems:    maxItems,
		logger:      logger.With(slog.String("component", "acl.PostsSource")),
	}, nil
}

// Name implements ports.QuoteSource and ports.HealthChecker.
func (s *PostsSource) Name() string {
	return s.ServiceName()
}

// FetchCandidates implements ports.QuoteSource. Records come back in the
// order the source lists them, at most MaxItems of them.
func (s *PostsSource) FetchCandidates(ctx context.Context) ([]domain.Quote, error) {
	logger := s.logger
	if l, ok := logging.Lookup(ctx); ok {
		logger = l.With(slog.String("component", "acl.PostsSource"))
	}

	logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", s.path))

	body, err := s.Get(ctx, s.listingPath(s.maxItems), fetchOperation)
	if err != nil {
		return nil, err
	}

	posts, err := DecodeResponse[[]post](body)
	if err != nil {
		return nil, domain.NewUnavailableError(s.Name(), err.Error())
	}

	items := *posts
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	quotes, err := TranslateSlice(items, func(p *post) (*domain.Quote, error) {
		return s.translate(ctx, logger, p)
	})
	if err != nil {
		return nil, domain.NewUnavailableError(s.Name(), err.Error())
	}

	logger.DebugContext(ctx, "fetched candidates",
		slog.Int("received", len(*posts)),
		slog.Int("candidates", len(quotes)),
	)

	return quotes, nil
}

// Check implements ports.HealthChecker. An open circuit fails immediately;
// otherwise one listing item is requested.
func (s *PostsSource) Check(ctx context.Context) error {
	if s.Client().CircuitState() == clients.StateOpen {
		return domain.NewUnavailableError(s.Name(), "circuit breaker open")
	}

	body, err := s.Get(ctx, s.listingPath(1), "health check")
	if err != nil {
		return err
	}

	return body.Close()
}

func (s *PostsSource) translate(ctx context.Context, logger *slog.Logger, p *post) (*domain.Quote, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		logger.DebugContext(ctx, "skipping post without title", slog.Int("post_id", p.ID))
		return nil, nil //nolint:nilnil // dropped item
	}

	q, err := domain.NewQuote(title, s.category, "user-"+strconv.Itoa(p.UserID))
	if err != nil {
		return nil, err
	}

	q.ID = s.Name() + "-" + strconv.Itoa(p.ID)

	return &q, nil
}

func (s *PostsSource) listingPath(limit int) string {
	return s.path + "?" + url.Values{"_limit": {strconv.Itoa(limit)}}.Encode()
}
