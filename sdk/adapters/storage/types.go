package storage

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TxKind names the ledger call an UnsignedTx encodes.
type TxKind string

const (
	TxRegisterBlob TxKind = "register_blob"
	TxCertifyBlob  TxKind = "certify_blob"
)

var (
	// ErrUnreachable is returned when no storage node answers.
	ErrUnreachable = errors.New("storage network unreachable")
	// ErrQuorumNotReached is returned when too few slivers were acknowledged.
	ErrQuorumNotReached = errors.New("upload quorum not reached")
	// ErrNotUploaded is returned when certification is requested for a blob
	// this client has no acknowledged upload for.
	ErrNotUploaded = errors.New("blob has not been uploaded")
	// ErrNotCertified is returned by ListResultIdentifiers when the
	// aggregator does not yet report the blob as certified.
	ErrNotCertified = errors.New("blob is not certified")
	// ErrMissingRegisterDigest guards UploadEncoded.
	ErrMissingRegisterDigest = errors.New("register digest is required")
	ErrNilBundle             = errors.New("bundle is nil")
)

// Confirmation is a storage node's signed receipt for one sliver.
type Confirmation struct {
	Node      string `json:"node"`
	Sliver    int    `json:"sliver"`
	Signature string `json:"signature"`
}

// UnsignedTx is a ledger transaction waiting for a signature. The field order
// is part of the signing format.
type UnsignedTx struct {
	Kind           TxKind         `json:"kind"`
	Sender         string         `json:"sender"`
	BlobID         string         `json:"blob_id"`
	RootHash       string         `json:"root_hash"`
	Size           int64          `json:"size"`
	EncodedSize    int64          `json:"encoded_size"`
	Epochs         uint32         `json:"epochs,omitempty"`
	Deletable      bool           `json:"deletable,omitempty"`
	RegisterDigest string         `json:"register_digest,omitempty"`
	Confirmations  []Confirmation `json:"confirmations,omitempty"`
}

// Bytes returns the canonical encoding that gets signed.
func (t *UnsignedTx) Bytes() ([]byte, error) {
	return json.Marshal(t)
}

// UploadResult summarises an acknowledged upload.
type UploadResult struct {
	Acked         int
	Required      int
	Confirmations []Confirmation
}
