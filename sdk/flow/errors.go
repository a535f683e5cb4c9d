package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/walrusagents/blobflow/sdk/adapters/signer"
)

// Failure kinds. Every error returned by a Flow operation is a *Error whose
// Kind is one of these, so callers can branch with errors.Is.
var (
	ErrUserCancelled     = errors.New("user cancelled")
	ErrNetworkOrStorage  = errors.New("network or storage failure")
	ErrEncoding          = errors.New("encoding failure")
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrSignerUnavailable is the cause of the violation raised when a signing
	// step is attempted with no signer connected.
	ErrSignerUnavailable = errors.New("no signer connected")
	// ErrBusy is the cause when a second operation overlaps an in-flight one.
	ErrBusy = errors.New("another operation is in progress")
	// ErrSessionReset is the cause when Reset ran while an operation was in
	// flight; that operation's late result is discarded.
	ErrSessionReset = errors.New("session was reset")
)

var (
	errMissingIdentifier = errors.New("identifier is required")
	errNotEncoded        = errors.New("content has not been encoded")
	errNotRegistered     = errors.New("register digest is not set")
	errNotUploaded       = errors.New("upload has not been acknowledged")
	errNotCertified      = errors.New("certify digest is not set")
	errNoResultIDs       = errors.New("no result identifiers")
	errAlreadyRegistered = errors.New("blob is already registered")
	errAlreadyCertified  = errors.New("blob is already certified")
	errEmptyDigest       = errors.New("signer returned an empty digest")
)

// Op names a Flow operation.
type Op string

const (
	OpPrepare  Op = "prepare"
	OpRegister Op = "register"
	OpUpload   Op = "upload"
	OpCertify  Op = "certify"
)

// Error describes a failed operation with enough context to decide between
// retrying the step and resetting.
type Error struct {
	Kind           error
	Op             Op
	State          State // state the session was in when the failure happened
	RegisterDigest string
	CertifyDigest  string // set when certify signed but the result lookup failed
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s in %s (state %s)", e.Kind, e.Op, e.State)
	if e.RegisterDigest != "" {
		fmt.Fprintf(&b, " register=%s", e.RegisterDigest)
	}
	if e.CertifyDigest != "" {
		fmt.Fprintf(&b, " certify=%s", e.CertifyDigest)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Retryable reports whether repeating the failed step can succeed without
// changing the input.
func (e *Error) Retryable() bool {
	return errors.Is(e.Kind, ErrUserCancelled) || errors.Is(e.Kind, ErrNetworkOrStorage)
}

// KindName is the short label used in logs and metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrUserCancelled):
		return "user_cancelled"
	case errors.Is(err, ErrNetworkOrStorage):
		return "network_or_storage"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	default:
		return "unknown"
	}
}

// classifySigning maps a signer failure onto the taxonomy. A caller that
// cancels ctx is treated like a user declining.
func classifySigning(err error) error {
	switch {
	case signer.IsDeclined(err), errors.Is(err, context.Canceled):
		return ErrUserCancelled
	default:
		return ErrNetworkOrStorage
	}
}
