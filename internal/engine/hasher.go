package engine

import (
	"fmt"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
)

// hashAlgorithm is the content-addressing algorithm: a collision-resistant
// 256-bit digest, canonicalized the way OCI-style content-addressed stores
// key their blobs (sync-algorithm.md §4.1).
const hashAlgorithm = digest.SHA256

// chunkSize bounds the read buffer used while streaming a file into the
// digest, keeping memory flat regardless of file size.
const chunkSize = 1 << 20 // 1 MiB

// Hasher streams a file in bounded-size chunks and returns a stable content
// digest. Re-hashing the same bytes yields the same key regardless of OS,
// filesystem, or process.
type Hasher struct{}

// NewHasher returns a ready-to-use Hasher. It holds no state; streaming
// happens per call.
func NewHasher() *Hasher { return &Hasher{} }

// HashFile streams path and returns its hex-encoded content digest. A read
// failure surfaces as *HashError so upper layers can mark the path failed
// for this run without touching LocalIndex (sync-algorithm.md §4.1).
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &HashError{Path: path, Cause: err}
	}
	defer f.Close()

	hex, err := h.HashReader(f)
	if err != nil {
		return "", &HashError{Path: path, Cause: err}
	}

	return hex, nil
}

// HashReader streams r through the content digest and returns its
// hex-encoded value (without the "sha256:" algorithm prefix — the
// BlobStore key is the bare hex string per sync-algorithm.md §6).
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	digester := hashAlgorithm.Digester()

	buf := make([]byte, chunkSize)

	if _, err := io.CopyBuffer(digester.Hash(), r, buf); err != nil {
		return "", fmt.Errorf("engine: stream digest: %w", err)
	}

	return digester.Digest().Encoded(), nil
}
