package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawKind tags the shape of an untrusted record before normalization.
type RawKind int

const (
	// RawInvalid is any JSON value that is neither a string nor an object.
	RawInvalid RawKind = iota
	// RawString is a bare quotation string.
	RawString
	// RawObject is a JSON object that may carry text, category, author and id.
	RawObject
)

// RawQuote is a record as it arrives from an import file or a remote source.
type RawQuote struct {
	Kind RawKind

	// String holds the value for RawString.
	String string

	// Fields holds the undecoded members for RawObject.
	Fields map[string]json.RawMessage

	// JSONType names the offending type for RawInvalid.
	JSONType string
}

// UnmarshalJSON decodes any JSON value without failing, tagging its kind.
func (r *RawQuote) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = RawQuote{Kind: RawInvalid, JSONType: jsonTypeOf(trimmed)}

	switch r.JSONType {
	case "string":
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}

		r.Kind, r.String = RawString, s
	case "object":
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return err
		}

		r.Kind, r.Fields = RawObject, fields
	}

	return nil
}

// RawFromString wraps a bare string.
func RawFromString(s string) RawQuote {
	return RawQuote{Kind: RawString, String: s, JSONType: "string"}
}

// Normalize turns an untrusted record into a Quote. Bare strings, objects
// without a category, and objects claiming the reserved "all" category land
// in CategoryUncategorized; a missing author becomes AuthorUnknown. It never
// panics.
func Normalize(raw RawQuote) (Quote, error) {
	switch raw.Kind {
	case RawString:
		text := strings.TrimSpace(raw.String)
		if text == "" {
			return Quote{}, NewValidationError("text", ReasonMissingText, "quote text is empty")
		}

		return Quote{Text: text, Category: CategoryUncategorized, Author: AuthorUnknown}, nil
	case RawObject:
		return normalizeObject(raw.Fields)
	default:
		return Quote{}, NewValidationErrorWithValue("", ReasonInvalidType,
			"record must be a string or an object", raw.JSONType)
	}
}

func normalizeObject(fields map[string]json.RawMessage) (Quote, error) {
	textField := "text"

	rawText, ok := fields[textField]
	if !ok || isNull(rawText) {
		textField = "quote"
		rawText, ok = fields[textField]
	}

	if !ok || isNull(rawText) {
		return Quote{}, NewValidationError("text", ReasonMissingText, "quote text is required")
	}

	text, err := optionalString(textField, rawText)
	if err != nil {
		return Quote{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Quote{}, NewValidationError(textField, ReasonMissingText, "quote text is empty")
	}

	category, err := optionalString("category", fields["category"])
	if err != nil {
		return Quote{}, err
	}

	category = strings.TrimSpace(category)
	if category == "" || NormalizeCategory(category) == CategoryAll {
		category = CategoryUncategorized
	}

	author, err := optionalString("author", fields["author"])
	if err != nil {
		return Quote{}, err
	}

	id, err := optionalID(fields["id"])
	if err != nil {
		return Quote{}, err
	}

	return Quote{ID: id, Text: text, Category: category, Author: defaultAuthor(author)}, nil
}

func optionalString(field string, raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", NewValidationErrorWithValue(field, ReasonInvalidType,
			"must be a string", jsonTypeOf(bytes.TrimSpace(raw)))
	}

	return s, nil
}

// optionalID accepts either a string or a number; numbers keep their literal form.
func optionalID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}

	trimmed := bytes.TrimSpace(raw)
	switch jsonTypeOf(trimmed) {
	case "string":
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", NewValidationError("id", ReasonInvalidType, "malformed string")
		}

		return strings.TrimSpace(s), nil
	case "number":
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", NewValidationError("id", ReasonInvalidType, "malformed number")
		}

		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}

		return n.String(), nil
	default:
		return "", NewValidationErrorWithValue("id", ReasonInvalidType,
			"must be a string or a number", jsonTypeOf(trimmed))
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func jsonTypeOf(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}

	switch data[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
