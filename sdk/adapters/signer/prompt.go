package signer

import (
	"context"
	"fmt"

	"github.com/walrusagents/blobflow/sdk/adapters/storage"

	"github.com/AlecAivazis/survey/v2"
)

// AskFunc asks the user to approve a transaction.
type AskFunc func(message string) (bool, error)

// PromptSigner asks for confirmation before every signature and turns a "no"
// into a declined SigningError.
type PromptSigner struct {
	inner Signer
	ask   AskFunc
}

var _ Signer = (*PromptSigner)(nil)

// NewPromptSigner wraps inner. A nil ask uses an interactive survey confirm.
func NewPromptSigner(inner Signer, ask AskFunc) *PromptSigner {
	if ask == nil {
		ask = surveyConfirm
	}
	return &PromptSigner{inner: inner, ask: ask}
}

func surveyConfirm(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

func (p *PromptSigner) Address() string { return p.inner.Address() }

func (p *PromptSigner) SignAndSubmit(ctx context.Context, tx *storage.UnsignedTx) (Receipt, error) {
	if tx == nil {
		return Receipt{}, &SigningError{Err: fmt.Errorf("transaction is nil")}
	}
	ok, err := p.ask(describe(tx))
	if err != nil {
		// interrupt (ctrl-c) lands here
		return Receipt{}, &SigningError{Declined: true, Err: fmt.Errorf("%w: %v", ErrDeclined, err)}
	}
	if !ok {
		return Receipt{}, Declined("")
	}
	return p.inner.SignAndSubmit(ctx, tx)
}

func describe(tx *storage.UnsignedTx) string {
	switch tx.Kind {
	case storage.TxRegisterBlob:
		return fmt.Sprintf("Sign register transaction for blob %s (%d bytes, %d epochs)?", tx.BlobID, tx.Size, tx.Epochs)
	case storage.TxCertifyBlob:
		return fmt.Sprintf("Sign certify transaction for blob %s (%d confirmations)?", tx.BlobID, len(tx.Confirmations))
	default:
		return fmt.Sprintf("Sign %s transaction for blob %s?", tx.Kind, tx.BlobID)
	}
}
