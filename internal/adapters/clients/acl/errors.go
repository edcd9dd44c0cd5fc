package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// ErrorResponse is the error body a quote source may send. Both the nested
// form {"error":{"code","message"}} and the flat form {"code","message"}
// are accepted.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetCode returns the code from whichever form was sent.
func (e *ErrorResponse) GetCode() string {
	if e.Error.Code != "" {
		return e.Error.Code
	}

	return e.Code
}

// GetMessage returns the message from whichever form was sent.
func (e *ErrorResponse) GetMessage() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}

	return e.Message
}

// ParseErrorResponse decodes an error body. Returns nil when the body is
// empty, not JSON, or carries neither a code nor a message.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return nil
	}

	if errResp.GetCode() == "" && errResp.GetMessage() == "" {
		return nil
	}

	return &errResp
}

// MapHTTPError translates a failed fetch into a domain error. A quote source
// is read-only and a sync cycle cannot use a partial answer, so every
// failure surfaces as domain.ErrUnavailable; the reason says what went wrong.
//
// resp may be nil when clientErr is set. A 2xx response maps to nil.
func MapHTTPError(resp *http.Response, clientErr error, source, operation string) error {
	if clientErr != nil {
		return domain.NewUnavailableError(source, clientReason(clientErr, operation))
	}

	if resp == nil {
		return domain.NewUnavailableError(source, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var errResp *ErrorResponse
	if resp.Body != nil {
		errResp = ParseErrorResponse(resp.Body)
	}

	return domain.NewUnavailableError(source, statusReason(resp.StatusCode, errResp, operation))
}

func clientReason(err error, operation string) string {
	if errors.Is(err, clients.ErrCircuitOpen) {
		return fmt.Sprintf("circuit breaker open during %s", operation)
	}

	return fmt.Sprintf("%s failed: %v", operation, err)
}

func statusReason(status int, errResp *ErrorResponse, operation string) string {
	var reason string

	switch status {
	case http.StatusNotFound:
		reason = "source path not found"
	case http.StatusUnauthorized, http.StatusForbidden:
		reason = "access denied"
	case http.StatusTooManyRequests:
		reason = "rate limit exceeded"
	case http.StatusServiceUnavailable:
		reason = "service temporarily unavailable"
	default:
		reason = fmt.Sprintf("%s failed with status %d", operation, status)
	}

	if errResp != nil && errResp.GetMessage() != "" {
		reason += ": " + errResp.GetMessage()
	}

	return reason
}
