package utils

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"lukechampine.com/blake3"
)

func TestChunkSizeFor(t *testing.T) {
	const (
		kib = 1 << 10
		mib = 1 << 20
	)

	cases := []struct {
		name  string
		input int64
		want  int64
	}{
		{"unknownOrZero", 0, 512 * kib},
		{"negative", -1, 512 * kib},
		{"exact4MiB", 4 * mib, 512 * kib},
		{"justOver4MiB", 4*mib + 1, 1 * mib},
		{"exact32MiB", 32 * mib, 1 * mib},
		{"justOver32MiB", 32*mib + 1, 2 * mib},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := chunkSizeFor(tc.input); got != tc.want {
				t.Fatalf("chunkSizeFor(%d) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestBlake3HashMatchesReference(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("sliver"), 100_000)
	want := blake3.Sum256(data)

	got, err := Blake3Hash(data)
	if err != nil {
		t.Fatalf("Blake3Hash returned error: %v", err)
	}
	if !bytes.Equal(got, want[:]) {
		t.Fatalf("digest mismatch")
	}
	if GetHashFromBytes(data) != hex.EncodeToString(want[:]) {
		t.Fatalf("hex digest mismatch")
	}
}

type errorAfterFirstRead struct {
	first bool
	err   error
	data  []byte
}

func (r *errorAfterFirstRead) Read(p []byte) (int, error) {
	if !r.first {
		r.first = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, r.err
}

func TestHashReaderBLAKE3ReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("read boom")
	r := &errorAfterFirstRead{
		data: []byte("abc"),
		err:  readErr,
	}

	if _, err := hashReaderBLAKE3(r, 0); !errors.Is(err, readErr) {
		t.Fatalf("expected read error to propagate, got %v", err)
	}
}
