package dto

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// MapDomainError maps an error to an HTTP status and envelope. Unknown errors
// become 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	// ImportError unwraps to its cause, which may itself be a validation
	// error, so it is matched first.
	var importErr *domain.ImportError
	if errors.As(err, &importErr) {
		details := map[string]string{"reason": importErr.Reason}
		if importErr.Index >= 0 {
			details["index"] = strconv.Itoa(importErr.Index)
		}

		return http.StatusBadRequest, NewErrorResponseWithDetails(ErrorCodeImport, importErr.Error(), details)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, NewErrorResponse(ErrorCodeTooLarge,
			"request body exceeds "+strconv.FormatInt(maxBytesErr.Limit, 10)+" bytes")
	}

	switch {
	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())

		var ve *domain.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			resp.Error.Details = map[string]string{ve.Field: ve.Message}
			if ve.Reason != "" {
				resp.Error.Details["reason"] = ve.Reason
			}
		}

		return http.StatusBadRequest, resp

	case domain.IsNotFound(err):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.IsConflict(err):
		return http.StatusConflict, NewErrorResponse(ErrorCodeConflict, err.Error())

	case domain.IsUnavailable(err), domain.IsStorage(err):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodeUnavailable, err.Error())

	default:
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}
}

// HandleError writes the mapped envelope for err. Internal errors are logged
// in full; the client only sees the generic message.
func HandleError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, resp := MapDomainError(err)
	resp.TraceID = TraceID(ctx)

	if status == http.StatusInternalServerError {
		logging.FromContext(ctx).ErrorContext(ctx, "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// RespondWithErrorCode writes an envelope for an adapter-level failure that
// did not come from the domain.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	resp := NewErrorResponse(code, message).WithTraceID(TraceID(c.Request.Context()))
	c.JSON(HTTPStatusFromCode(code), resp)
}

// RespondWithValidationErrors writes a 400 with field-level messages.
func RespondWithValidationErrors(c *gin.Context, fieldErrors map[string]string) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", fieldErrors).
		WithTraceID(TraceID(c.Request.Context()))
	c.JSON(http.StatusBadRequest, resp)
}

// HandleBindError reports a failed BindAndValidate: field messages for
// validator failures, the mapped domain error otherwise.
func HandleBindError(c *gin.Context, err error) {
	if IsValidationError(err) {
		RespondWithValidationErrors(c, ValidationErrors(err))
		return
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		HandleError(c, err)
		return
	}

	RespondWithErrorCode(c, ErrorCodeBadRequest, err.Error())
}
