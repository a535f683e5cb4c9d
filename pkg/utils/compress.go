package utils

import (
	"encoding/base64"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encOnce sync.Once
	encoder *zstd.Encoder
	encErr  error

	decOnce sync.Once
	decoder *zstd.Decoder
	decErr  error
)

// ZstdCompress compresses data with a shared encoder. EncodeAll is safe for
// concurrent use.
func ZstdCompress(data []byte) ([]byte, error) {
	encOnce.Do(func() {
		encoder, encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	if encErr != nil {
		return nil, encErr
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

// ZstdDecompress reverses ZstdCompress.
func ZstdDecompress(data []byte) ([]byte, error) {
	decOnce.Do(func() {
		decoder, decErr = zstd.NewReader(nil)
	})
	if decErr != nil {
		return nil, decErr
	}
	return decoder.DecodeAll(data, nil)
}

// B64Encode returns the standard base64 encoding of in.
func B64Encode(in []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(in)))
	base64.StdEncoding.Encode(out, in)
	return out
}

// B64Decode decodes standard base64.
func B64Decode(in []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(in)))
	n, err := base64.StdEncoding.Decode(out, in)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
