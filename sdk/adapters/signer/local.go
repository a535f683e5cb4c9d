package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/walrusagents/blobflow/sdk/adapters/storage"
	"github.com/walrusagents/blobflow/sdk/log"

	"github.com/cosmos/btcutil/base58"
	"github.com/cosmos/go-bip39"
	"golang.org/x/crypto/blake2b"
)

const (
	// ed25519 scheme flag prefixed to the public key before address hashing
	schemeEd25519 byte = 0x00
)

// transaction intent: scope, version, app id
var txIntent = []byte{0, 0, 0}

// SignedTx is what a Submitter puts on the wire.
type SignedTx struct {
	Kind      storage.TxKind `json:"kind"`
	TxBytes   string         `json:"tx_bytes"`
	Signature string         `json:"signature"`
	PublicKey string         `json:"public_key"`
	Digest    string         `json:"digest"`
}

// Submitter delivers a signed transaction to the ledger and returns the digest
// the ledger assigned.
type Submitter interface {
	Submit(ctx context.Context, tx SignedTx) (string, error)
}

// LocalSigner holds an ed25519 key derived from a bip39 mnemonic.
type LocalSigner struct {
	priv      ed25519.PrivateKey
	pub       ed25519.PublicKey
	address   string
	submitter Submitter
	logger    log.Logger
}

var _ Signer = (*LocalSigner)(nil)

// NewLocalSigner derives the key from mnemonic. The mnemonic is not retained.
func NewLocalSigner(mnemonic string, submitter Submitter, logger log.Logger) (*LocalSigner, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)

	return &LocalSigner{
		priv:      priv,
		pub:       pub,
		address:   AddressFromPublicKey(pub),
		submitter: submitter,
		logger:    logger,
	}, nil
}

// AddressFromPublicKey returns 0x-hex(blake2b-256(flag || pubkey)).
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, schemeEd25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// TxDigest is base58(blake2b-256(intent || txBytes)).
func TxDigest(txBytes []byte) string {
	return base58.Encode(digestBytes(txBytes))
}

func digestBytes(txBytes []byte) []byte {
	buf := make([]byte, 0, len(txIntent)+len(txBytes))
	buf = append(buf, txIntent...)
	buf = append(buf, txBytes...)
	sum := blake2b.Sum256(buf)
	return sum[:]
}

func (s *LocalSigner) Address() string { return s.address }

func (s *LocalSigner) SignAndSubmit(ctx context.Context, tx *storage.UnsignedTx) (Receipt, error) {
	if tx == nil {
		return Receipt{}, &SigningError{Err: errors.New("transaction is nil")}
	}
	t := *tx
	if t.Sender == "" {
		t.Sender = s.address
	}
	if t.Sender != s.address {
		return Receipt{}, &SigningError{Err: fmt.Errorf("sender %s does not match signer %s", t.Sender, s.address)}
	}

	raw, err := t.Bytes()
	if err != nil {
		return Receipt{}, &SigningError{Err: fmt.Errorf("encode transaction: %w", err)}
	}
	digest := digestBytes(raw)
	sig := ed25519.Sign(s.priv, digest)
	local := base58.Encode(digest)

	s.logger.Debug(ctx, "Submitting signed transaction", "kind", t.Kind, "blobID", t.BlobID, "digest", local)
	ledgerDigest, err := s.submitter.Submit(ctx, SignedTx{
		Kind:      t.Kind,
		TxBytes:   base64.StdEncoding.EncodeToString(raw),
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: base64.StdEncoding.EncodeToString(s.pub),
		Digest:    local,
	})
	if err != nil {
		if t.Kind == storage.TxCertifyBlob && errors.Is(err, ErrAlreadyCertified) {
			s.logger.Info(ctx, "Blob already certified on ledger", "blobID", t.BlobID)
			return Receipt{Digest: local, AlreadyApplied: true}, nil
		}
		return Receipt{}, &SigningError{Err: err}
	}
	if ledgerDigest == "" {
		ledgerDigest = local
	}
	return Receipt{Digest: ledgerDigest}, nil
}
