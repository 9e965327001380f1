package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vaelis-ai/vaelis-api/internal/api/shared"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/service"
	"github.com/vaelis-ai/vaelis-api/internal/service/auth"
	"github.com/vaelis-ai/vaelis-api/internal/store"
)

// DuplicateRetryHeader tells the client why a retry was rejected.
const DuplicateRetryHeader = "X-RateLimit-Reason"

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// internal error types never decide the response on their own.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, generation.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, generation.ErrClientError),
		errors.Is(err, generation.ErrServiceError):
		return http.StatusBadGateway
	case errors.Is(err, generation.ErrUnknown):
		return http.StatusInternalServerError

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, store.ErrConversationNotFound),
		errors.Is(err, store.ErrMessageNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrDuplicateRetry):
		return http.StatusConflict

	case errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var genErr *generation.Error
	if errors.As(err, &genErr) {
		return generation.SafeMessage(genErr.Kind)
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, store.ErrConversationNotFound):
		return "Conversation not found"
	case errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, store.ErrMessageNotFound):
		return "Message not found"

	case errors.Is(err, service.ErrDuplicateRetry):
		return "Duplicate retry too soon"

	case errors.Is(err, service.ErrEmptyPrompt):
		return "Prompt is required"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err. A non-empty message
// overrides the safe default.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	var genErr *generation.Error
	if errors.As(err, &genErr) {
		opts = append(opts, shared.WithKind(string(genErr.Kind)))
	}
	if errors.Is(err, service.ErrDuplicateRetry) {
		opts = append(opts,
			shared.WithHeader(DuplicateRetryHeader, "duplicate_retry"),
			shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// HandleValidationError writes a 400 response for a failed decode or
// validation without echoing the raw error.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError turns validator output into a short message that
// names the field and the failed rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe.Tag()))
	}
	if errors.Is(err, shared.ErrEmptyBody) {
		return "Request body is required"
	}
	if strings.HasPrefix(err.Error(), "invalid JSON body") {
		return "Invalid request format"
	}
	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "invalid ID"
	default:
		return "validation failed"
	}
}
