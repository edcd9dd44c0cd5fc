package dto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails map[string]string
	}{
		{
			name:        "payload not a sequence",
			err:         domain.NewImportError(domain.ReasonNotASequence, nil),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeImport,
			wantMessage: "import rejected: not_a_sequence",
			wantDetails: map[string]string{"reason": domain.ReasonNotASequence},
		},
		{
			name: "invalid element keeps its index even though the cause is a validation error",
			err: fmt.Errorf("perform: %w", domain.NewInvalidElementError(2,
				domain.NewValidationError("text", domain.ReasonMissingText, "quote text is required"))),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeImport,
			wantDetails: map[string]string{"reason": domain.ReasonInvalidElement, "index": "2"},
		},
		{
			name:        "oversized body",
			err:         fmt.Errorf("reading: %w", &http.MaxBytesError{Limit: 10}),
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantCode:    ErrorCodeTooLarge,
			wantMessage: "request body exceeds 10 bytes",
		},
		{
			name:        "validation carries field and reason",
			err:         domain.NewValidationError("text", domain.ReasonMissingText, "quote text is required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeValidation,
			wantDetails: map[string]string{"text": "quote text is required", "reason": domain.ReasonMissingText},
		},
		{
			name:       "not found",
			err:        domain.NewNotFoundError("quote", "last-shown"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "sync in flight",
			err:        fmt.Errorf("sync: %w", app.ErrSyncInFlight),
			wantStatus: http.StatusConflict,
			wantCode:   ErrorCodeConflict,
		},
		{
			name:       "source unavailable",
			err:        domain.NewUnavailableError("posts", "connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeUnavailable,
		},
		{
			name:       "storage failure",
			err:        domain.NewStorageWriteError("quotes", errors.New("disk full")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeUnavailable,
		},
		{
			name:        "unknown error hides its message",
			err:         errors.New("secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantDetails, resp.Error.Details)

			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
		})
	}

	t.Run("nil error", func(t *testing.T) {
		status, resp := MapDomainError(nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Nil(t, resp)
	})
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := map[string]int{
		ErrorCodeNotFound:    http.StatusNotFound,
		ErrorCodeConflict:    http.StatusConflict,
		ErrorCodeValidation:  http.StatusBadRequest,
		ErrorCodeImport:      http.StatusBadRequest,
		ErrorCodeBadRequest:  http.StatusBadRequest,
		ErrorCodeTooLarge:    http.StatusRequestEntityTooLarge,
		ErrorCodeUnavailable: http.StatusServiceUnavailable,
		ErrorCodeTimeout:     http.StatusGatewayTimeout,
		ErrorCodeInternal:    http.StatusInternalServerError,
		"SOMETHING_ELSE":     http.StatusInternalServerError,
	}

	for code, want := range tests {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	resp := NewErrorResponseWithDetails(ErrorCodeImport, "import rejected", map[string]string{"reason": "x"}).
		WithTraceID("abc")

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"error":{"code":"IMPORT_ERROR","message":"import rejected","details":{"reason":"x"}},"traceId":"abc"}`,
		string(data))

	data, err = json.Marshal(NewErrorResponse(ErrorCodeNotFound, "gone"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"gone"}}`, string(data))
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceID(ctx))
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/quotes/last-shown", nil)

	HandleError(c, domain.NewNotFoundError("quote", "last-shown"))

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
}

type probe struct {
	Category string `json:"category" validate:"required,notblank"`
	Mode     string `form:"mode"     validate:"omitempty,oneof=append replace"`
	Author   string `json:"author"   validate:"max=5"`
	Count    int    `json:"count"    validate:"min=1"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   probe
		want map[string]string
	}{
		{
			name: "valid",
			in:   probe{Category: "work", Mode: "replace", Count: 1},
			want: map[string]string{},
		},
		{
			name: "required uses the json name",
			in:   probe{Count: 1},
			want: map[string]string{"category": "this field is required"},
		},
		{
			name: "whitespace is blank",
			in:   probe{Category: " \t", Count: 1},
			want: map[string]string{"category": "must not be blank"},
		},
		{
			name: "oneof uses the form name",
			in:   probe{Category: "x", Mode: "merge", Count: 1},
			want: map[string]string{"mode": "must be one of: append replace"},
		},
		{
			name: "string and number bounds",
			in:   probe{Category: "x", Author: "abcdef"},
			want: map[string]string{"author": "must be at most 5 characters", "count": "must be at least 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)

			if len(tt.want) == 0 {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.want, ValidationErrors(err))
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	newContext := func(body string) (*gin.Context, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPut, "/api/v1/filter", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")

		return c, w
	}

	t.Run("valid body", func(t *testing.T) {
		c, _ := newContext(`{"category":"work"}`)

		var req FilterRequest
		require.NoError(t, BindAndValidate(c, &req))
		assert.Equal(t, "work", req.Category)
	})

	t.Run("malformed body is a binding error", func(t *testing.T) {
		c, w := newContext(`{"category":`)

		var req FilterRequest
		err := BindAndValidate(c, &req)
		require.ErrorIs(t, err, ErrBinding)

		HandleBindError(c, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), ErrorCodeBadRequest)
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		c, w := newContext(`{"category":"   "}`)

		var req FilterRequest
		err := BindAndValidate(c, &req)
		require.ErrorIs(t, err, ErrValidation)

		HandleBindError(c, err)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ErrorCodeValidation, resp.Error.Code)
		assert.Equal(t, map[string]string{"category": "must not be blank"}, resp.Error.Details)
	})
}

func TestBindQueryAndValidate(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/quotes/import?mode=replace", nil)

	var q ImportQuery
	require.NoError(t, BindQueryAndValidate(c, &q))
	assert.Equal(t, "replace", q.Mode)
}

func TestConversions(t *testing.T) {
	assert.NotNil(t, FromQuotes(nil))
	assert.Empty(t, FromQuotes(nil))

	q := domain.Quote{ID: "posts-1", Text: "t", Category: "c", Author: "a"}
	assert.Equal(t, Quote{ID: "posts-1", Text: "t", Category: "c", Author: "a"}, FromQuote(q))

	assert.Equal(t, ImportResponse{Mode: "replace", Imported: 2, Total: 2},
		FromImportResult(app.ImportResult{Imported: 2, Total: 2, Mode: app.ImportReplace}))

	sync := FromSyncResult(app.SyncResult{
		RunID:          "run-1",
		Sources:        []string{"posts"},
		Fetched:        3,
		Dropped:        1,
		Applied:        2,
		DiscardedLocal: 1,
		Total:          5,
		Duration:       1500 * time.Millisecond,
	})
	assert.Equal(t, int64(1500), sync.DurationMS)
	assert.Equal(t, 2, sync.Applied)
}
