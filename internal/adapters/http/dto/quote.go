package dto

import (
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// Quote is the API form of a record.
type Quote struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Author   string `json:"author"`
}

// FromQuote converts a domain record.
func FromQuote(q domain.Quote) Quote {
	return Quote{ID: q.ID, Text: q.Text, Category: q.Category, Author: q.Author}
}

// FromQuotes converts a slice, never returning nil.
func FromQuotes(qs []domain.Quote) []Quote {
	out := make([]Quote, len(qs))
	for i, q := range qs {
		out[i] = FromQuote(q)
	}

	return out
}

// AddQuoteRequest is the body of POST /quotes. Text and category rules are
// enforced by the domain so the response carries its reason codes.
type AddQuoteRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Author   string `json:"author"   validate:"max=200"`
}

// CategoryQuery selects a category; empty means the persisted filter.
type CategoryQuery struct {
	Category string `form:"category"`
}

// ImportQuery is the query string of POST /quotes/import.
type ImportQuery struct {
	Mode string `form:"mode" validate:"omitempty,oneof=append replace"`
}

// QuoteListResponse is the body of GET /quotes.
type QuoteListResponse struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Quotes   []Quote `json:"quotes"`
}

// RandomQuoteResponse is the body of GET /quotes/random. Quote is null when
// the category has no records.
type RandomQuoteResponse struct {
	Category string `json:"category"`
	Quote    *Quote `json:"quote"`
	Message  string `json:"message,omitempty"`
}

// NoQuotesMessage is shown in place of a quote when none match.
const NoQuotesMessage = "No quotes available."

// CategoriesResponse is the body of GET /categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
	Selected   string   `json:"selected"`
}

// FilterRequest is the body of PUT /filter.
type FilterRequest struct {
	Category string `json:"category" validate:"required,notblank"`
}

// FilterResponse is the body of GET and PUT /filter.
type FilterResponse struct {
	Category string `json:"category"`
}

// ImportResponse is the body of a successful import.
type ImportResponse struct {
	Mode     string `json:"mode"`
	Imported int    `json:"imported"`
	Total    int    `json:"total"`
}

// FromImportResult converts an app.ImportResult.
func FromImportResult(r app.ImportResult) ImportResponse {
	return ImportResponse{Mode: string(r.Mode), Imported: r.Imported, Total: r.Total}
}

// CollectionResponse reports the collection size after a bulk change.
type CollectionResponse struct {
	Total int `json:"total"`
}

// SyncResponse is the body of a successful POST /quotes/sync.
type SyncResponse struct {
	RunID          string   `json:"runId"`
	Sources        []string `json:"sources"`
	Fetched        int      `json:"fetched"`
	Dropped        int      `json:"dropped"`
	Applied        int      `json:"applied"`
	DiscardedLocal int      `json:"discardedLocal"`
	Total          int      `json:"total"`
	DurationMS     int64    `json:"durationMs"`
}

// FromSyncResult converts an app.SyncResult.
func FromSyncResult(r app.SyncResult) SyncResponse {
	return SyncResponse{
		RunID:          r.RunID,
		Sources:        r.Sources,
		Fetched:        r.Fetched,
		Dropped:        r.Dropped,
		Applied:        r.Applied,
		DiscardedLocal: r.DiscardedLocal,
		Total:          r.Total,
		DurationMS:     r.Duration.Milliseconds(),
	}
}

// PublishResponse reports where a published export went.
type PublishResponse struct {
	Location string `json:"location"`
}
