// Package acl is the anti-corruption layer between remote quote sources and
// the domain.
//
// External DTOs stay unexported in this package. Each adapter embeds
// [BaseAdapter], decodes with [DecodeResponse], and converts items with a
// [Translator] run through [TranslateSlice]. The reconciler only ever sees
// validated domain.Quote values.
//
// # Errors
//
// A sync cycle either uses a source's whole answer or none of it, so every
// failure is reported as domain.ErrUnavailable by [MapHTTPError]:
//   - transport errors, exhausted retries and an open circuit
//   - non-2xx responses, with the reason taken from the status and, when
//     present, the message in an [ErrorResponse] body
//   - bodies that do not decode
//
// # Sources
//
// [PostsSource] reads a jsonplaceholder-style /posts listing. Each post title
// becomes a quote in the configured category with author "user-<userId>" and
// ID "<source>-<id>". Posts with a blank title are dropped.
package acl
