// Package xfererr defines the tagged error variant that crosses
// component boundaries in the transfer engine, per the error handling
// design: errors carry a kind and a human-readable context string
// rather than being matched as opaque strings.
package xfererr

import "fmt"

// Kind classifies an error by its recovery policy.
type Kind int

const (
	// KindTransport covers connect refused, reset, timeout, short read.
	// Retryable at the block level up to the scheduler's attempt budget.
	KindTransport Kind = iota
	// KindProtocol covers bad frames, unsupported versions, and messages
	// of the wrong type for the current exchange. Always fatal.
	KindProtocol
	// KindIntegrity covers CRC mismatches, post-decompression length
	// mismatches, and whole-file hash mismatches. CRC/length mismatches
	// are retried as KindTransport; whole-file hash mismatch is fatal.
	KindIntegrity
	// KindResource covers disk space, permissions, and file-size limits.
	// Always fatal, reported verbatim.
	KindResource
	// KindPolicy covers handshake-time parameter violations: bad
	// filename, length, block size, or concurrency. Fatal, no side
	// effects.
	KindPolicy
)

// String returns the human-readable name of the error kind.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindIntegrity:
		return "integrity"
	case KindResource:
		return "resource"
	case KindPolicy:
		return "policy"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is the tagged variant carried across component boundaries.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a tagged error of the given kind.
func New(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// Transport is a convenience constructor for KindTransport errors.
func Transport(context string, cause error) *Error {
	return New(KindTransport, context, cause)
}

// Protocol is a convenience constructor for KindProtocol errors.
func Protocol(context string, cause error) *Error {
	return New(KindProtocol, context, cause)
}

// Integrity is a convenience constructor for KindIntegrity errors.
func Integrity(context string, cause error) *Error {
	return New(KindIntegrity, context, cause)
}

// Resource is a convenience constructor for KindResource errors.
func Resource(context string, cause error) *Error {
	return New(KindResource, context, cause)
}

// Policy is a convenience constructor for KindPolicy errors.
func Policy(context string, cause error) *Error {
	return New(KindPolicy, context, cause)
}

// Retryable reports whether an error of this kind should be retried at
// the block level rather than aborting the whole session. Only
// KindTransport is retryable; per-block CRC/length mismatches are
// retried as transport-level failures, while KindIntegrity (whole-file
// hash mismatch or hashing failure) is fatal.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport
}

// ExitCode maps a Kind to the CLI exit code from the external
// interfaces specification: 2 I/O, 3 protocol, 4 integrity, 5 network.
// KindPolicy errors surface as protocol errors (exit code 3) since they
// are detected during the handshake exchange.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindTransport:
		return 5
	case KindProtocol, KindPolicy:
		return 3
	case KindIntegrity:
		return 4
	case KindResource:
		return 2
	default:
		return 1
	}
}
