package scrape

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed WorkItem. The set is closed: every failure an
// item can report maps to exactly one kind.
type ErrorKind string

const (
	// KindTransientNetwork covers timeouts, connection resets, 5xx responses
	// and batch-deadline aborts. Retryable.
	KindTransientNetwork ErrorKind = "transient_network"
	// KindRateLimitedByTarget is an upstream 429. Retryable with backoff.
	KindRateLimitedByTarget ErrorKind = "rate_limited_by_target"
	// KindAuthExpired is an upstream 403; the session reinitializes before
	// the next attempt.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindResourceNotFound is an upstream 404. Terminal, never retried.
	KindResourceNotFound ErrorKind = "resource_not_found"
	// KindProxyAuthFailure is an upstream 407; the item retries immediately
	// without the proxy.
	KindProxyAuthFailure ErrorKind = "proxy_auth_failure"
	// KindExtractionInsufficient means the fetch succeeded but no extractor
	// produced usable content.
	KindExtractionInsufficient ErrorKind = "extraction_insufficient"
	// KindRateLimiterExhausted means local admission timed out before the
	// item ever reached the network.
	KindRateLimiterExhausted ErrorKind = "rate_limiter_exhausted"
	// KindSessionReinitFailed means session recovery exhausted its attempts.
	KindSessionReinitFailed ErrorKind = "session_reinitialization_failed"
)

// Error is a classified scrape failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, defaulting to
// KindTransientNetwork for unclassified failures so the taxonomy stays closed.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransientNetwork
}

// Retryable reports whether the session attempt loop may retry this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindResourceNotFound, KindRateLimiterExhausted, KindSessionReinitFailed:
		return false
	}
	return true
}

// ClassifyStatus maps an HTTP status code to an ErrorKind. 2xx codes do not
// classify; callers must not pass them.
func ClassifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimitedByTarget
	case http.StatusForbidden:
		return KindAuthExpired
	case http.StatusNotFound, http.StatusGone:
		return KindResourceNotFound
	case http.StatusProxyAuthRequired:
		return KindProxyAuthFailure
	default:
		return KindTransientNetwork
	}
}
