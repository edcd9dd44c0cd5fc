package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
)

// BaseAdapter holds what every source adapter needs: the instrumented
// client and the name the source reports under.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a base adapter. Panics if client is nil.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	if client == nil {
		panic("acl: client is required")
	}

	return BaseAdapter{client: client, serviceName: serviceName}
}

// ServiceName returns the source name.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Client returns the underlying HTTP client.
func (a *BaseAdapter) Client() *clients.Client {
	return a.client
}

// Get fetches path and returns the body of a 2xx response; the caller closes
// it. Any other outcome is returned as a mapped domain error.
func (a *BaseAdapter) Get(ctx context.Context, path, operation string) (io.ReadCloser, error) {
	resp, err := a.client.Get(ctx, path)
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, operation)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, operation)
	}

	return resp.Body, nil
}

// DecodeResponse decodes a JSON body into T and closes it.
func DecodeResponse[T any](body io.ReadCloser) (*T, error) {
	if body == nil {
		return nil, errors.New("response body is nil")
	}
	defer func() { _ = body.Close() }()

	var result T
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// Translator converts one external DTO into a domain value. Returning
// (nil, nil) drops the item.
type Translator[E any, D any] func(ext *E) (*D, error)

// TranslateSlice applies translate to each item in order, skipping dropped
// items. The first error aborts the whole batch.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D]) ([]D, error) {
	result := make([]D, 0, len(items))

	for i := range items {
		translated, err := translate(&items[i])
		if err != nil {
			return nil, fmt.Errorf("translating item %d: %w", i, err)
		}

		if translated != nil {
			result = append(result, *translated)
		}
	}

	return result, nil
}
