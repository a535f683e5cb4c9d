package storage

//go:generate mockgen -destination=mocks/client_mock.go -package=storagemocks -source=client.go

import (
	"context"

	"github.com/walrusagents/blobflow/pkg/blobkit"
)

// Client is everything a flow needs from the blob storage network.
type Client interface {
	// Encode prepares a payload locally. No network access.
	Encode(payload blobkit.Payload, identifier string, tags map[string]string) (*blobkit.Bundle, error)
	BuildRegisterTransaction(ctx context.Context, bundle *blobkit.Bundle, owner string, epochs uint32, deletable bool) (*UnsignedTx, error)
	// UploadEncoded pushes the slivers to the storage nodes. It succeeds once
	// the client's quorum policy is satisfied.
	UploadEncoded(ctx context.Context, bundle *blobkit.Bundle, registerDigest string) (*UploadResult, error)
	BuildCertifyTransaction(ctx context.Context, bundle *blobkit.Bundle) (*UnsignedTx, error)
	ListResultIdentifiers(ctx context.Context, bundle *blobkit.Bundle) ([]string, error)
	// Ping reports whether at least one storage node is reachable.
	Ping(ctx context.Context) error
}
