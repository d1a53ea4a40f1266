package engine

import (
	"errors"
	"fmt"
)

// The pipeline's failure classes. Every error leaving the facade is one of
// these (or a context error). Messages never contain document text or span
// values.

// InvalidInputError rejects a call before detection starts: empty text or
// text over the configured maximum size.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// EncryptionError means reversible mode was requested but the token map
// could not be sealed. The call fails closed: no redacted text, no partial
// token map.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

// IsEncryption reports whether err is an EncryptionError.
func IsEncryption(err error) bool {
	var target *EncryptionError
	return errors.As(err, &target)
}

// Warning strings surfaced in response metadata (fail-open conditions).
const (
	WarnAuditEnqueueFailed    = "audit_enqueue_failed"
	WarnAuditSinkUnconfigured = "audit_sink_unconfigured"
)
