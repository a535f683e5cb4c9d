package blobkit

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := Encode(RawJSON([]byte(`{"name":"Agent","role":"scout"}`)), "agent.json", nil, Options{})
	require.NoError(t, err)
	b, err := Encode(RawJSON([]byte(`{"role":"scout","name":"Agent"}`)), "agent.json", nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.BlobID, b.BlobID, "key order must not change the blob id")
	assert.Equal(t, a.CID, b.CID)
	assert.Len(t, a.Slivers, DefaultShardCount)
	assert.Equal(t, KindJSON, a.Kind)
	assert.True(t, strings.HasPrefix(a.CID, "bafk"), "raw CIDv1 in base32")
}

func TestEncodeJSONValue(t *testing.T) {
	b, err := Encode(JSON(map[string]string{"name": "Agent"}), "agent.json", map[string]string{"type": "agent"}, Options{ShardCount: 4})
	require.NoError(t, err)
	assert.Len(t, b.Slivers, 4)
	assert.Equal(t, "agent", b.Tags["type"])

	data, err := Decode(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Agent"}`, string(data))
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name       string
		payload    Payload
		identifier string
		tags       map[string]string
		opts       Options
		want       error
	}{
		{"zero payload", Payload{}, "x", nil, Options{}, ErrUnknownKind},
		{"empty text", Text(""), "x", nil, Options{}, ErrEmptyPayload},
		{"nil json", JSON(nil), "x", nil, Options{}, ErrEmptyPayload},
		{"bad json", RawJSON([]byte(`{"name":`)), "x", nil, Options{}, ErrInvalidJSON},
		{"bad utf8", Text(string([]byte{0xff, 0xfe})), "x", nil, Options{}, ErrInvalidText},
		{"no identifier", Binary([]byte{1}), "", nil, Options{}, ErrInvalidIdentifier},
		{"empty tag key", Binary([]byte{1}), "x", map[string]string{"": "v"}, Options{}, ErrInvalidTagKey},
		{"too large", Binary(bytes.Repeat([]byte{1}, 65)), "x", nil, Options{MaxBlobSize: 64}, ErrBlobTooLarge},
		{"shard count", Binary([]byte{1}), "x", nil, Options{ShardCount: -1}, ErrInvalidShardCount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.payload, tc.identifier, tc.tags, tc.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestDecodeDetectsTampering(t *testing.T) {
	b, err := Encode(Text(strings.Repeat("walrus ", 200)), "notes.txt", nil, Options{ShardCount: 3})
	require.NoError(t, err)

	b.Slivers[1].Data = append([]byte{}, b.Slivers[1].Data...)
	b.Slivers[1].Data[0] ^= 0xff
	_, err = Decode(b)
	assert.ErrorIs(t, err, ErrSliverMismatch)
}

func TestBlobIDRoundTrip(t *testing.T) {
	b, err := Encode(Binary([]byte("bytes")), "blob.bin", nil, Options{})
	require.NoError(t, err)
	root, err := RootFromBlobID(b.BlobID)
	require.NoError(t, err)
	assert.Equal(t, b.RootHash, root)

	_, err = RootFromBlobID("not-a-blob")
	assert.Error(t, err)
}

func TestTinyPayloadHasEmptyTrailingSlivers(t *testing.T) {
	b, err := Encode(Binary([]byte{7}), "one.bin", nil, Options{ShardCount: 64})
	require.NoError(t, err)
	for _, s := range b.Slivers {
		assert.NotEmpty(t, s.Hash)
	}
	data, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, data)
}
