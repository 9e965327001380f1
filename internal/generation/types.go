package generation

import (
	"context"
	"strings"
)

// DefaultMaxRetries is the number of retries after the first attempt when a
// request does not override it.
const DefaultMaxRetries = 2

// MaxRetriesLimit caps any configured or per-request retry count.
const MaxRetriesLimit = 10

// Mode selects the assistant persona sent to the provider.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeThink Mode = "think"
	ModeStudy Mode = "study"
	ModeBuild Mode = "build"
)

// ParseMode normalizes a caller-supplied mode. Unrecognized values,
// including the empty string, become ModeChat.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeChat, ModeThink, ModeStudy, ModeBuild:
		return m
	default:
		return ModeChat
	}
}

// SourceItem is one web source used to enrich a prompt.
type SourceItem struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Request is a single logical generation request.
type Request struct {
	Prompt  string
	Mode    Mode
	Sources []SourceItem

	// MaxRetries overrides the client's retry count when non-nil. Values
	// above MaxRetriesLimit are clamped.
	MaxRetries *int
}

// Retries returns a MaxRetries override for n.
func Retries(n int) *int {
	return &n
}

// Generator produces a Result for a Request. Implementations never return a
// nil Result and never surface failures any other way than through
// Result.Status and Result.Kind.
type Generator interface {
	Generate(ctx context.Context, req Request) *Result
}
