// Package errs classifies errors surfaced by the Submission & Sync Core's
// external collaborators (signer, media store, chain RPC, indexer) into the
// small taxonomy JobRunner and QueueController need to decide retry policy.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the classification of a CoreError.
type Kind string

const (
	// Cancelled means the signer rejected the request. Terminal, no retry, no error toast.
	Cancelled Kind = "cancelled"
	// KnownContractRevert means simulation reverted with a recognized reason. Terminal.
	KnownContractRevert Kind = "known_contract_revert"
	// UnknownRevert means the on-chain receipt status was reverted. Terminal, generic message.
	UnknownRevert Kind = "unknown_revert"
	// Transient means a network/timeout/gas/nonce/upload-transient condition. Retry with backoff.
	Transient Kind = "transient"
	// Permanent means an upload-permanent, encode, or precondition error. Terminal.
	Permanent Kind = "permanent"
	// Skipped means a dedup match was found in the indexer. Terminal, no error.
	Skipped Kind = "skipped"
	// Lease means the cross-tab lease could not be acquired. Non-terminal; another tab runs it.
	Lease Kind = "lease"
)

// CoreError wraps an underlying error with a Kind and whether JobRunner
// should schedule a retry.
type CoreError struct {
	Kind      Kind
	Err       error
	Retryable bool
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// New builds a CoreError of the given kind wrapping err.
func New(kind Kind, err error) *CoreError {
	return &CoreError{Kind: kind, Err: err, Retryable: kind == Transient || kind == Lease}
}

// Cancelledf builds a Cancelled CoreError from a format string.
func Cancelledf(format string, args ...any) *CoreError {
	return New(Cancelled, fmt.Errorf(format, args...))
}

// Transientf builds a Transient CoreError from a format string.
func Transientf(format string, args ...any) *CoreError {
	return New(Transient, fmt.Errorf(format, args...))
}

// Permanentf builds a Permanent CoreError from a format string.
func Permanentf(format string, args ...any) *CoreError {
	return New(Permanent, fmt.Errorf(format, args...))
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError.
// Unclassified errors default to Transient — the conservative choice is to
// retry rather than silently drop work.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Transient
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return true
}

// IsTerminal reports whether err represents a final, non-retryable outcome.
func IsTerminal(err error) bool {
	return !IsRetryable(err)
}
