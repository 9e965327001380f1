package generation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AssistantName is the product label attached to every successful result.
const AssistantName = "Vaelis"

// Status tells callers which variant of Result they hold.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ErrorKind classifies a failed generation.
type ErrorKind string

const (
	// KindServiceUnavailable means no credential is configured; no network call was made.
	KindServiceUnavailable ErrorKind = "service_unavailable"
	// KindClientError means the provider rejected the request with a 4xx status.
	KindClientError ErrorKind = "client_error"
	// KindServiceError means timeouts, 5xx or transport failures outlasted the retries.
	KindServiceError ErrorKind = "service_error"
	// KindUnknown means an unexpected, non-transport failure.
	KindUnknown ErrorKind = "unknown_error"
)

// Sentinel errors, one per ErrorKind, for errors.Is matching.
var (
	ErrServiceUnavailable = errors.New("generation service unavailable")
	ErrClientError        = errors.New("generation request rejected")
	ErrServiceError       = errors.New("generation service error")
	ErrUnknown            = errors.New("unexpected generation failure")
)

var kindSentinels = map[ErrorKind]error{
	KindServiceUnavailable: ErrServiceUnavailable,
	KindClientError:        ErrClientError,
	KindServiceError:       ErrServiceError,
	KindUnknown:            ErrUnknown,
}

var safeMessages = map[ErrorKind]string{
	KindServiceUnavailable: "The AI service is not configured. Please try again later.",
	KindClientError:        "The AI service could not process this request.",
	KindServiceError:       "The AI service is temporarily unavailable. Please try again later.",
	KindUnknown:            "An unexpected error occurred while generating a response.",
}

// SafeMessage returns the user-facing sentence for kind.
func SafeMessage(kind ErrorKind) string {
	if msg, ok := safeMessages[kind]; ok {
		return msg
	}
	return safeMessages[KindUnknown]
}

// Result is the outcome of one generation. It is either a success
// (Status == StatusOK, Assistant/Output/Sources/Raw set) or a failure
// (Status == StatusError, Kind set, Output holds SafeMessage(Kind)).
type Result struct {
	Assistant string
	Output    string
	Sources   []SourceItem
	Raw       any

	Status     Status
	Kind       ErrorKind
	StatusCode int
	Details    string
}

// Failure builds an error Result. Output is always the generic message for
// kind; details is operator-facing and must already be redacted.
func Failure(kind ErrorKind, statusCode int, details string) *Result {
	return &Result{
		Output:     SafeMessage(kind),
		Status:     StatusError,
		Kind:       kind,
		StatusCode: statusCode,
		Details:    details,
	}
}

// OK reports whether r is a success.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Err returns nil for a success and an *Error describing the failure otherwise.
func (r *Result) Err() error {
	if r == nil {
		return &Error{Kind: KindUnknown, Message: SafeMessage(KindUnknown)}
	}
	if r.OK() {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Output, StatusCode: r.StatusCode}
}

type successJSON struct {
	Assistant string       `json:"assistant"`
	Output    string       `json:"output"`
	Sources   []SourceItem `json:"sources"`
	Raw       any          `json:"raw"`
}

type failureJSON struct {
	Output     string    `json:"output"`
	Error      ErrorKind `json:"error"`
	Status     Status    `json:"status"`
	StatusCode int       `json:"status_code,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// MarshalJSON encodes only the fields of r's variant.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Status == StatusOK {
		sources := r.Sources
		if sources == nil {
			sources = []SourceItem{}
		}
		return json.Marshal(successJSON{
			Assistant: r.Assistant,
			Output:    r.Output,
			Sources:   sources,
			Raw:       r.Raw,
		})
	}
	return json.Marshal(failureJSON{
		Output:     r.Output,
		Error:      r.Kind,
		Status:     StatusError,
		StatusCode: r.StatusCode,
		Details:    r.Details,
	})
}

// Error is the error form of a failed Result.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (%s, upstream status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
}

// Unwrap exposes the sentinel matching e.Kind.
func (e *Error) Unwrap() error {
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		return sentinel
	}
	return ErrUnknown
}
