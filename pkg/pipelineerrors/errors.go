// Package pipelineerrors defines the error-kind taxonomy shared by every
// stage of the message-to-event pipeline, so callers can branch on a
// stable kind rather than string-matching error messages.
package pipelineerrors

import "errors"

// Kind identifies which pipeline error category an error belongs to.
type Kind string

const (
	KindInvalidJSON          Kind = "invalid_json"
	KindSchemaError          Kind = "schema_error"
	KindProviderError        Kind = "provider_error"
	KindPersistenceError     Kind = "persistence_error"
	KindConfigurationError   Kind = "configuration_error"
	KindLockBusy             Kind = "lock_busy"
	KindDuplicateUpstreamMsg Kind = "duplicate_upstream_message"
)

// KindError wraps an underlying error with a stable Kind so callers can
// categorize failures (for logging, metrics, or retry policy) without
// depending on message text.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. If err is nil, the returned error's
// message is just the kind string.
func New(kind Kind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}
