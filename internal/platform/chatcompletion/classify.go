package chatcompletion

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/metrics"
)

// attemptFailure describes why a single HTTP attempt did not produce a usable
// completion. Exactly one of the shapes below is expected:
//   - statusCode set: the upstream answered with a non-2xx status
//   - transport set: the request never got a response (timeout flags deadlines)
//   - neither: a local failure such as request construction or body decoding
type attemptFailure struct {
	statusCode int
	timeout    bool
	transport  bool
	err        error
	body       string
}

// decision is the outcome of classifying an attemptFailure.
type decision struct {
	retry bool
	kind  generation.ErrorKind
}

// classify maps an attempt failure to a retry decision. It is a pure
// function of its input.
func classify(f attemptFailure) decision {
	switch {
	case f.timeout:
		return decision{retry: true, kind: generation.KindServiceError}
	case f.statusCode >= http.StatusInternalServerError:
		return decision{retry: true, kind: generation.KindServiceError}
	case f.statusCode == http.StatusTooManyRequests:
		return decision{retry: true, kind: generation.KindServiceError}
	case f.statusCode >= http.StatusBadRequest:
		return decision{retry: false, kind: generation.KindClientError}
	case f.transport:
		return decision{retry: true, kind: generation.KindServiceError}
	default:
		return decision{retry: false, kind: generation.KindUnknown}
	}
}

// transportFailure wraps an error returned by http.Client.Do or while reading
// the response body.
func transportFailure(err error) attemptFailure {
	return attemptFailure{
		transport: true,
		timeout:   isTimeout(err),
		err:       err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// outcome is the metrics label for a classified failure.
func (d decision) outcome() string {
	if d.retry {
		return metrics.OutcomeRetryable
	}
	return metrics.OutcomeTerminal
}
