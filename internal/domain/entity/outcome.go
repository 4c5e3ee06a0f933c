package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a fetch failure for retry and reporting decisions.
type ErrorKind string

const (
	// ErrConfiguration covers missing or invalid credentials/endpoints.
	// Fatal for the source, never retried.
	ErrConfiguration ErrorKind = "configuration"
	// ErrRateLimited means the local sliding window rejected the call.
	// The caller may retry after the window rolls.
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrTransient covers timeouts, connection failures and HTTP 5xx.
	ErrTransient ErrorKind = "transient"
	// ErrDomain is a provider-reported logical error. Retryable only when
	// the provider's message indicates a nonce or timeout condition.
	ErrDomain ErrorKind = "domain"
	// ErrValidation means the response shape could not be decoded. Terminal.
	ErrValidation ErrorKind = "validation"
)

// FetchError is the typed failure adapters surface to the orchestrator.
// It never escapes the per-account boundary.
type FetchError struct {
	Kind      ErrorKind
	Source    string
	Message   string
	Cause     error
	retryable bool
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s [%s]: %v", e.Source, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s [%s]", e.Source, e.Message, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Retryable reports whether the retry policy may attempt the call again.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case ErrTransient, ErrRateLimited:
		return true
	case ErrDomain:
		return e.retryable
	default:
		return false
	}
}

// NewConfigurationError builds a terminal configuration failure for a source.
func NewConfigurationError(source, msg string) *FetchError {
	return &FetchError{Kind: ErrConfiguration, Source: source, Message: msg}
}

// NewRateLimitedError builds a local rate-limit rejection.
func NewRateLimitedError(source string) *FetchError {
	return &FetchError{Kind: ErrRateLimited, Source: source, Message: "rate limit window exhausted"}
}

// NewTransientError wraps a network-level failure.
func NewTransientError(source, msg string, cause error) *FetchError {
	return &FetchError{Kind: ErrTransient, Source: source, Message: msg, Cause: cause}
}

// NewDomainError wraps a provider-reported error. Messages mentioning a
// nonce or timeout are classified retryable, everything else is terminal.
func NewDomainError(source, providerMsg string) *FetchError {
	lower := strings.ToLower(providerMsg)
	retryable := strings.Contains(lower, "nonce") || strings.Contains(lower, "timeout")
	return &FetchError{Kind: ErrDomain, Source: source, Message: providerMsg, retryable: retryable}
}

// NewValidationError wraps a malformed response. The payload snippet is kept
// in the message for log context.
func NewValidationError(source, msg string, cause error) *FetchError {
	return &FetchError{Kind: ErrValidation, Source: source, Message: msg, Cause: cause}
}

// FetchErrorFromStatus maps an HTTP status code from a provider to a typed
// failure. 5xx is transient, 429 is a rate limit, everything else in the 4xx
// range is a terminal domain error.
func FetchErrorFromStatus(source string, status int, body string) *FetchError {
	switch {
	case status >= 500:
		return &FetchError{Kind: ErrTransient, Source: source, Message: fmt.Sprintf("provider returned HTTP %d: %s", status, body)}
	case status == 429:
		return &FetchError{Kind: ErrRateLimited, Source: source, Message: fmt.Sprintf("provider returned HTTP 429: %s", body)}
	default:
		return &FetchError{Kind: ErrDomain, Source: source, Message: fmt.Sprintf("provider returned HTTP %d: %s", status, body)}
	}
}

// IsRetryable reports whether an arbitrary error may be retried. Untyped
// errors are assumed to be transport failures and therefore retryable;
// adapters mark terminal conditions explicitly.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return true
}

// ErrorKindOf extracts the kind of a typed failure, or ErrTransient for
// untyped errors.
func ErrorKindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrTransient
}

// AccountUpdate is the event an orchestrator publishes after a fetch cycle
// settles. Exactly one of the two shapes is populated: a successful update
// carries Value and Balances, a failed one carries Err. On failure the store
// keeps the account's last known value.
type AccountUpdate struct {
	AccountID string
	Value     float64
	Balances  []TokenBalance
	At        time.Time
	Err       *FetchError
}
