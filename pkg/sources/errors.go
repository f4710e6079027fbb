package sources

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error taxonomy shared by every source client. Callers treat all of them as
// "no content for this call" and match with errors.Is.
var (
	ErrAuth             = errors.New("source authentication failed")
	ErrRateLimited      = errors.New("source rate limited")
	ErrScopeUnavailable = errors.New("source scope unavailable")
	ErrTransient        = errors.New("source request failed")
	ErrUnexpectedStatus = errors.New("source returned unexpected status")
)

// ErrorKind names the sentinel err wraps, for logs and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrScopeUnavailable):
		return "scope_unavailable"
	case errors.Is(err, ErrUnexpectedStatus):
		return "unexpected_status"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "other"
	}
}

func statusError(source, scope string, status int, body []byte) error {
	return fmt.Errorf("%w: %s %s status %d body: %s", ErrUnexpectedStatus, source, scope, status, responseSnippet(body))
}

func unavailable(status int) bool {
	return status == http.StatusNotFound || status == http.StatusForbidden
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
