// Package blobkit provides small, pure utilities for turning a content
// payload into the bundle a blob storage network accepts.
//
// Scope:
//   - Typed payload variants (JSON metadata, text, raw bytes) with validation
//   - Deterministic encoding: canonical bytes, zstd, fixed-count slivers
//   - Blob identifiers derived from the sliver hashes, plus a CIDv1
//   - Decoding slivers back to the original payload for verification
//
// Non-goals:
//   - No network or ledger dependencies
//   - No logging; keep functions small and deterministic
package blobkit
