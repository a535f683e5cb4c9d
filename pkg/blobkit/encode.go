package blobkit

import (
	"bytes"

	"github.com/walrusagents/blobflow/pkg/errors"
	"github.com/walrusagents/blobflow/pkg/utils"

	"github.com/cosmos/btcutil/base58"
)

const (
	// DefaultShardCount is the number of slivers a payload is split into.
	DefaultShardCount = 10
	// DefaultMaxBlobSize bounds the canonical payload size.
	DefaultMaxBlobSize int64 = 10 << 20
	// EncodingVersion is bumped whenever the bundle layout changes.
	EncodingVersion = 1
)

var (
	ErrBlobTooLarge      = errors.New("payload exceeds maximum blob size")
	ErrInvalidIdentifier = errors.New("identifier must be non-empty and at most 256 bytes")
	ErrInvalidShardCount = errors.New("shard count must be between 1 and 1000")
	ErrSliverMismatch    = errors.New("sliver hash mismatch")
	ErrBlobIDMismatch    = errors.New("blob id mismatch")
)

// Options tune Encode. Zero values select the defaults.
type Options struct {
	ShardCount  int
	MaxBlobSize int64
}

func (o Options) withDefaults() Options {
	if o.ShardCount == 0 {
		o.ShardCount = DefaultShardCount
	}
	if o.MaxBlobSize == 0 {
		o.MaxBlobSize = DefaultMaxBlobSize
	}
	return o
}

// Sliver is one contiguous piece of the compressed payload.
type Sliver struct {
	Index int
	Data  []byte
	Hash  string // base58(blake3(Data))
}

// Bundle is the storage-node-ready form of a payload.
type Bundle struct {
	Version     int
	Identifier  string
	Tags        map[string]string
	Kind        Kind
	Size        int64 // canonical payload size
	EncodedSize int64 // sum of sliver sizes
	Slivers     []Sliver
	RootHash    []byte
	BlobID      string
	CID         string
}

// SliverHashes returns the sliver hashes in index order.
func (b *Bundle) SliverHashes() []string {
	out := make([]string, len(b.Slivers))
	for i, s := range b.Slivers {
		out[i] = s.Hash
	}
	return out
}

// Encode turns a payload into a Bundle. It is pure and deterministic: equal
// inputs always yield the same BlobID.
func Encode(p Payload, identifier string, tags map[string]string, opts Options) (*Bundle, error) {
	opts = opts.withDefaults()
	if opts.ShardCount < 1 || opts.ShardCount > 1000 {
		return nil, ErrInvalidShardCount
	}
	if identifier == "" || len(identifier) > 256 {
		return nil, ErrInvalidIdentifier
	}
	if err := ValidateTags(tags); err != nil {
		return nil, err
	}

	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > opts.MaxBlobSize {
		return nil, errors.Errorf("%w: %d > %d bytes", ErrBlobTooLarge, len(data), opts.MaxBlobSize)
	}

	compressed, err := utils.ZstdCompress(data)
	if err != nil {
		return nil, errors.Errorf("compress payload: %w", err)
	}

	slivers, hashes, err := split(compressed, opts.ShardCount)
	if err != nil {
		return nil, err
	}

	root, err := computeRoot(int64(len(data)), hashes)
	if err != nil {
		return nil, errors.Errorf("compute root: %w", err)
	}
	contentID, err := contentCID(data)
	if err != nil {
		return nil, err
	}

	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}

	return &Bundle{
		Version:     EncodingVersion,
		Identifier:  identifier,
		Tags:        copied,
		Kind:        p.Kind(),
		Size:        int64(len(data)),
		EncodedSize: int64(len(compressed)),
		Slivers:     slivers,
		RootHash:    root,
		BlobID:      BlobIDFromRoot(root),
		CID:         contentID,
	}, nil
}

// split cuts data into n slivers of near-equal size. Trailing slivers may be
// empty for tiny payloads; they still carry a hash so the root stays well
// defined.
func split(data []byte, n int) ([]Sliver, [][]byte, error) {
	size := (len(data) + n - 1) / n
	slivers := make([]Sliver, n)
	hashes := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if start > len(data) {
			start = len(data)
		}
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		h, err := utils.Blake3Hash(chunk)
		if err != nil {
			return nil, nil, errors.Errorf("hash sliver %d: %w", i, err)
		}
		slivers[i] = Sliver{Index: i, Data: chunk, Hash: base58.Encode(h)}
		hashes[i] = h
	}
	return slivers, hashes, nil
}

// Decode verifies every sliver against its hash and the bundle's blob id,
// then returns the canonical payload bytes.
func Decode(b *Bundle) ([]byte, error) {
	hashes := make([][]byte, len(b.Slivers))
	var buf bytes.Buffer
	buf.Grow(int(b.EncodedSize))
	for i, s := range b.Slivers {
		if s.Index != i {
			return nil, errors.Errorf("sliver %d out of order (index %d)", i, s.Index)
		}
		h, err := utils.Blake3Hash(s.Data)
		if err != nil {
			return nil, err
		}
		if base58.Encode(h) != s.Hash {
			return nil, errors.Errorf("%w: sliver %d", ErrSliverMismatch, i)
		}
		hashes[i] = h
		buf.Write(s.Data)
	}

	root, err := computeRoot(b.Size, hashes)
	if err != nil {
		return nil, err
	}
	if BlobIDFromRoot(root) != b.BlobID {
		return nil, ErrBlobIDMismatch
	}

	data, err := utils.ZstdDecompress(buf.Bytes())
	if err != nil {
		return nil, errors.Errorf("decompress payload: %w", err)
	}
	if int64(len(data)) != b.Size {
		return nil, errors.Errorf("decoded size %d does not match bundle size %d", len(data), b.Size)
	}
	return data, nil
}
