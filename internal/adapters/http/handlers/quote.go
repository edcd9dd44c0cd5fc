package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/exchange"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// QuoteHandler exposes the quote store over HTTP.
type QuoteHandler struct {
	store  *app.QuoteStore
	syncer *app.Syncer
	sink   ports.ExportSink
}

// NewQuoteHandler creates a quote handler. syncer and sink may be nil; the
// routes that need them then answer 503.
func NewQuoteHandler(store *app.QuoteStore, syncer *app.Syncer, sink ports.ExportSink) *QuoteHandler {
	if store == nil {
		panic("handlers: QuoteHandler requires a store")
	}

	return &QuoteHandler{store: store, syncer: syncer, sink: sink}
}

// selector returns the category query parameter, falling back to the
// persisted filter when it is absent.
func (h *QuoteHandler) selector(c *gin.Context) (string, bool) {
	var q dto.CategoryQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.HandleBindError(c, err)
		return "", false
	}

	if q.Category == "" {
		return h.store.SelectedFilter(c.Request.Context()), true
	}

	return q.Category, true
}

// ListQuotes handles GET /api/v1/quotes.
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	sel, ok := h.selector(c)
	if !ok {
		return
	}

	quotes := h.store.Filter(sel)

	c.JSON(http.StatusOK, dto.QuoteListResponse{
		Category: sel,
		Count:    len(quotes),
		Quotes:   dto.FromQuotes(quotes),
	})
}

// AddQuote handles POST /api/v1/quotes.
func (h *QuoteHandler) AddQuote(c *gin.Context) {
	var req dto.AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	q, err := h.store.Add(c.Request.Context(), req.Text, req.Category, req.Author)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromQuote(q))
}

// RandomQuote handles GET /api/v1/quotes/random. An empty category is a
// normal state, answered with a null quote and a message.
func (h *QuoteHandler) RandomQuote(c *gin.Context) {
	sel, ok := h.selector(c)
	if !ok {
		return
	}

	q, found := h.store.ShowRandom(c.Request.Context(), sel)
	if !found {
		c.JSON(http.StatusOK, dto.RandomQuoteResponse{Category: sel, Message: dto.NoQuotesMessage})
		return
	}

	out := dto.FromQuote(q)
	c.JSON(http.StatusOK, dto.RandomQuoteResponse{Category: sel, Quote: &out})
}

// LastShown handles GET /api/v1/quotes/last-shown.
func (h *QuoteHandler) LastShown(c *gin.Context) {
	q, err := h.store.LastShown(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromQuote(q))
}

// Export handles GET /api/v1/quotes/export as a file download.
func (h *QuoteHandler) Export(c *gin.Context) {
	data, err := h.store.Export()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exchange.FileName+`"`)
	c.Data(http.StatusOK, exchange.MediaType, data)
}

// PublishExport handles POST /api/v1/quotes/export/publish.
func (h *QuoteHandler) PublishExport(c *gin.Context) {
	location, err := h.store.PublishExport(c.Request.Context(), h.sink)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.PublishResponse{Location: location})
}

// Import handles POST /api/v1/quotes/import. The body is the full text of
// an exported file.
func (h *QuoteHandler) Import(c *gin.Context) {
	var q dto.ImportQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	mode, err := app.ParseImportMode(q.Mode)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			dto.HandleError(c, err)
			return
		}

		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, "reading request body failed")

		return
	}

	result, err := h.store.Import(c.Request.Context(), data, mode)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromImportResult(result))
}

// RestoreDefaults handles POST /api/v1/quotes/restore-defaults.
func (h *QuoteHandler) RestoreDefaults(c *gin.Context) {
	h.store.RestoreDefaults(c.Request.Context())
	c.JSON(http.StatusOK, dto.CollectionResponse{Total: h.store.Len()})
}

// Sync handles POST /api/v1/quotes/sync. A cycle already in flight is a 409;
// an unreachable source is a 503 and leaves the collection untouched.
func (h *QuoteHandler) Sync(c *gin.Context) {
	if h.syncer == nil {
		dto.HandleError(c, domain.NewUnavailableError("sync", "no quote sources configured"))
		return
	}

	result, err := h.syncer.SyncOnce(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromSyncResult(result))
}

// Categories handles GET /api/v1/categories.
func (h *QuoteHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoriesResponse{
		Categories: h.store.Categories(),
		Selected:   h.store.SelectedFilter(c.Request.Context()),
	})
}

// GetFilter handles GET /api/v1/filter.
func (h *QuoteHandler) GetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FilterResponse{Category: h.store.SelectedFilter(c.Request.Context())})
}

// SetFilter handles PUT /api/v1/filter.
func (h *QuoteHandler) SetFilter(c *gin.Context) {
	var req dto.FilterRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	sel, err := h.store.SetSelectedFilter(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FilterResponse{Category: sel})
}

// RegisterQuoteRoutes registers the quote API on rg.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.GET("", h.ListQuotes)
	quotes.POST("", h.AddQuote)
	quotes.GET("/random", h.RandomQuote)
	quotes.GET("/last-shown", h.LastShown)
	quotes.GET("/export", h.Export)
	quotes.POST("/export/publish", h.PublishExport)
	quotes.POST("/import", h.Import)
	quotes.POST("/restore-defaults", h.RestoreDefaults)
	quotes.POST("/sync", h.Sync)

	rg.GET("/categories", h.Categories)
	rg.GET("/filter", h.GetFilter)
	rg.PUT("/filter", h.SetFilter)
}
