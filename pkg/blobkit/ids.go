package blobkit

import (
	"encoding/binary"

	"github.com/walrusagents/blobflow/pkg/errors"
	"github.com/walrusagents/blobflow/pkg/utils"

	"github.com/cosmos/btcutil/base58"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// computeRoot hashes the unencoded size followed by every sliver hash in
// index order: blake3(u64be(size) || h0 || h1 || ...).
func computeRoot(size int64, sliverHashes [][]byte) ([]byte, error) {
	buf := make([]byte, 8, 8+len(sliverHashes)*32)
	binary.BigEndian.PutUint64(buf, uint64(size))
	for _, h := range sliverHashes {
		buf = append(buf, h...)
	}
	return utils.Blake3Hash(buf)
}

// BlobIDFromRoot renders the blob id for a root hash.
func BlobIDFromRoot(root []byte) string {
	return base58.Encode(root)
}

// RootFromBlobID parses a blob id back to its root hash.
func RootFromBlobID(blobID string) ([]byte, error) {
	root := base58.Decode(blobID)
	if len(root) != 32 {
		return nil, errors.Errorf("invalid blob id %q", blobID)
	}
	return root, nil
}

// contentCID returns a CIDv1 (raw codec, sha2-256) of the canonical payload.
// Gateways that only speak IPFS addressing can resolve the content by it.
func contentCID(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Errorf("multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
