package signer

//go:generate mockgen -destination=mocks/signer_mock.go -package=signermocks -source=signer.go

import (
	"context"
	"errors"
	"fmt"

	"github.com/walrusagents/blobflow/sdk/adapters/storage"
)

var (
	// ErrDeclined is the cause carried by a declined SigningError.
	ErrDeclined = errors.New("user declined to sign")
	// ErrAlreadyCertified is what a Submitter returns when the ledger already
	// holds a certificate for the blob.
	ErrAlreadyCertified = errors.New("blob already certified")
)

// Receipt is the ledger's answer to a submitted transaction.
type Receipt struct {
	Digest string
	// AlreadyApplied is set when the ledger reported the effect as already
	// present and the digest is the locally computed one.
	AlreadyApplied bool
}

// Signer signs a transaction and submits it to the ledger in one step. One
// call is one user gesture.
type Signer interface {
	SignAndSubmit(ctx context.Context, tx *storage.UnsignedTx) (Receipt, error)
	Address() string
}

// SigningError separates a user refusing to sign from every other failure.
type SigningError struct {
	Declined bool
	Err      error
}

func (e *SigningError) Error() string {
	if e.Declined {
		if e.Err != nil && !errors.Is(e.Err, ErrDeclined) {
			return fmt.Sprintf("signing declined: %v", e.Err)
		}
		return "signing declined"
	}
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Declined builds the error a signer returns when the user says no.
func Declined(reason string) error {
	if reason == "" {
		return &SigningError{Declined: true, Err: ErrDeclined}
	}
	return &SigningError{Declined: true, Err: fmt.Errorf("%w: %s", ErrDeclined, reason)}
}

// IsDeclined reports whether err carries a user refusal.
func IsDeclined(err error) bool {
	var se *SigningError
	if errors.As(err, &se) {
		return se.Declined
	}
	return errors.Is(err, ErrDeclined)
}
