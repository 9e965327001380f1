package service

import (
	"errors"
	"fmt"

	"github.com/vaelis-ai/vaelis-api/internal/store"
)

// Common service errors. The API layer maps them to HTTP status codes.
var (
	// ErrEmptyPrompt indicates a generation request without a prompt. Maps to 400.
	ErrEmptyPrompt = errors.New("prompt is required")

	// ErrConversationNotFound indicates the conversation does not exist or
	// belongs to another user. Maps to 404.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the message does not exist or is not part
	// of the given conversation. Maps to 404.
	ErrMessageNotFound = errors.New("message not found")

	// ErrDuplicateRetry indicates the same content was retried inside the
	// dedupe window. Maps to 409.
	ErrDuplicateRetry = errors.New("duplicate retry too soon")
)

// ChatServiceError wraps unexpected failures with the operation that hit them.
type ChatServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ChatServiceError.
func (e *ChatServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("chat service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ChatServiceError) Unwrap() error {
	return e.Err
}

// NewChatServiceError wraps err. Store not-found errors are translated to
// the matching service sentinel instead of being wrapped.
func NewChatServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, store.ErrConversationNotFound):
		return ErrConversationNotFound
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, store.ErrMessageNotFound):
		return ErrMessageNotFound
	}

	return &ChatServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
