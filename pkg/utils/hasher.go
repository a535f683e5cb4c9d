package utils

import (
	"encoding/hex"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// hashReaderBLAKE3 hashes r with a manual read loop. io.Copy on *os.File takes
// the WriteTo fast-path with a 32 KiB buffer, which is several times slower
// for large payloads.
func hashReaderBLAKE3(r io.Reader, sizeHint int64) ([]byte, error) {
	buf := make([]byte, chunkSizeFor(sizeHint))

	h := blake3.New(32, nil)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return nil, werr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	return h.Sum(nil), nil
}

// chunkSizeFor returns the hashing chunk size based on total input size.
func chunkSizeFor(total int64) int64 {
	switch {
	case total <= 0:
		return 512 << 10
	case total <= 4<<20:
		return 512 << 10
	case total <= 32<<20:
		return 1 << 20
	default:
		return 2 << 20
	}
}

// Blake3HashFile returns the BLAKE3-256 hash of a file.
func Blake3HashFile(filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return hashReaderBLAKE3(f, fi.Size())
}

// Blake3Hash returns the BLAKE3-256 hash of msg.
func Blake3Hash(msg []byte) ([]byte, error) {
	h := blake3.New(32, nil)
	if _, err := h.Write(msg); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// GetHashFromBytes returns the hex-encoded BLAKE3 hash of msg, or "" on error.
func GetHashFromBytes(msg []byte) string {
	sum, err := Blake3Hash(msg)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(sum)
}
