package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

const (
	// CategoryAll selects every record. It is never stored on a record.
	CategoryAll = "all"

	// CategoryUncategorized is assigned to imported records without a category.
	CategoryUncategorized = "uncategorized"

	// AuthorUnknown is the stored author when none was given.
	AuthorUnknown = "unknown"
)

// Quote is one entry of the collection.
// This is a domain entity - it has no knowledge of external systems.
type Quote struct {
	// ID is set only for records that came from a remote source.
	ID string `json:"id,omitempty"`

	// Text is the quotation itself, stored trimmed.
	Text string `json:"text"`

	// Category keeps the casing it was entered with; compare with CategoryKey.
	Category string `json:"category"`

	// Author defaults to AuthorUnknown.
	Author string `json:"author"`
}

// TextKey is the identity used when reconciling collections.
func (q Quote) TextKey() string {
	return strings.TrimSpace(q.Text)
}

// CategoryKey is the comparable form of the record's category.
func (q Quote) CategoryKey() string {
	return NormalizeCategory(q.Category)
}

// NormalizeCategory trims and case-folds a category or filter selector so
// that "Motivation" and "motivation" select the same records.
func NormalizeCategory(category string) string {
	return cases.Fold().String(strings.TrimSpace(category))
}

// IsAllSelector reports whether selector means "no filtering".
func IsAllSelector(selector string) bool {
	key := NormalizeCategory(selector)
	return key == "" || key == CategoryAll
}

// NewQuote builds a record from user input. Both text and category are
// required; author falls back to AuthorUnknown.
func NewQuote(text, category, author string) (Quote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Quote{}, NewValidationError("text", ReasonMissingText, "quote text is required")
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return Quote{}, NewValidationError("category", ReasonMissingCategory, "quote category is required")
	}

	if NormalizeCategory(category) == CategoryAll {
		return Quote{}, NewValidationErrorWithValue("category", ReasonReservedCategory,
			"category name is reserved", category)
	}

	return Quote{Text: text, Category: category, Author: defaultAuthor(author)}, nil
}

// SeedQuotes returns the collection used on first run and by "restore defaults".
func SeedQuotes() []Quote {
	return []Quote{
		{
			Text:     "The only way to do great work is to love what you do.",
			Category: "Motivation",
			Author:   AuthorUnknown,
		},
		{
			Text:     "Success is not final; failure is not fatal: It is the courage to continue that counts.",
			Category: "Success",
			Author:   AuthorUnknown,
		},
		{
			Text:     "Dream big and dare to fail.",
			Category: "Inspiration",
			Author:   AuthorUnknown,
		},
	}
}

// Categories lists "all" followed by every distinct category key in order of
// first appearance.
func Categories(quotes []Quote) []string {
	seen := make(map[string]struct{}, len(quotes))
	out := []string{CategoryAll}

	for _, q := range quotes {
		key := q.CategoryKey()
		if key == "" {
			continue
		}

		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, key)
	}

	return out
}

// Filter returns the records matching selector, preserving order.
func Filter(quotes []Quote, selector string) []Quote {
	if IsAllSelector(selector) {
		out := make([]Quote, len(quotes))
		copy(out, quotes)

		return out
	}

	key := NormalizeCategory(selector)
	out := make([]Quote, 0, len(quotes))

	for _, q := range quotes {
		if q.CategoryKey() == key {
			out = append(out, q)
		}
	}

	return out
}

// HasCategory reports whether any record carries the given category key.
func HasCategory(quotes []Quote, category string) bool {
	key := NormalizeCategory(category)
	for _, q := range quotes {
		if q.CategoryKey() == key {
			return true
		}
	}

	return false
}

func defaultAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return AuthorUnknown
	}

	return author
}
