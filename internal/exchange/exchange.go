// Package exchange serializes the quote collection to and from its portable
// JSON file form.
//
// Export always produces the same bytes for the same collection: a
// two-space indented array whose objects list id (when present), text,
// category and author in that order. Import accepts the looser shapes found
// in hand-written files (bare strings, objects without category) and is
// all-or-nothing: the first bad element rejects the whole payload.
package exchange

import (
	"bytes"
	"encoding/json"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

const (
	// FileName is the name offered for an exported collection.
	FileName = "quotes.json"

	// MediaType is the content type of an exported collection.
	MediaType = "application/json"
)

// Export renders quotes as an indented JSON array with a trailing newline.
func Export(quotes []domain.Quote) ([]byte, error) {
	if quotes == nil {
		quotes = []domain.Quote{}
	}

	data, err := json.MarshalIndent(quotes, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// Import parses an exported file. It returns an *domain.ImportError with
// reason not_a_sequence when the payload is not a JSON array, and
// invalid_element with the element index when any element fails
// normalization.
func Import(data []byte) ([]domain.Quote, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, domain.NewImportError(domain.ReasonNotASequence, nil)
	}

	var raws []domain.RawQuote
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, domain.NewImportError(domain.ReasonNotASequence, err)
	}

	quotes := make([]domain.Quote, 0, len(raws))

	for i, raw := range raws {
		q, err := domain.Normalize(raw)
		if err != nil {
			return nil, domain.NewInvalidElementError(i, err)
		}

		quotes = append(quotes, q)
	}

	return quotes, nil
}
