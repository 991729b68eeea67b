package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

var _ driven.Embedder = (*LocalEmbedder)(nil)

// LocalEmbedder is a deterministic, offline Embedder: it hash-projects text
// into a fixed-dimension unit-L2 vector, with no network dependency. It
// satisfies the embedding contract (§6.3) exactly, it just carries no
// semantic meaning, so it exists for tests and for offline demo use, never
// for production similarity search.
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder creates a LocalEmbedder with the given fixed dimension.
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &LocalEmbedder{dimensions: dimensions}
}

// Encode hashes text repeatedly to fill a dimensions-wide vector, then
// unit-L2-normalizes it.
func (e *LocalEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, e.dimensions)
	block := []byte(text)
	idx := 0
	for counter := uint32(0); idx < e.dimensions; counter++ {
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		sum := sha256.Sum256(append(ctr[:], block...))
		for i := 0; i < len(sum) && idx < e.dimensions; i += 4 {
			bits := binary.BigEndian.Uint32(sum[i : i+4])
			// Map to [-1, 1) via the signed interpretation of the top bits.
			out[idx] = float32(int32(bits)) / float32(1<<31)
			idx++
		}
	}
	return unitL2(out), nil
}

// Dimensions returns the fixed embedding width.
func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

// Model identifies this stub for logging and index-tagging purposes.
func (e *LocalEmbedder) Model() string { return "local-hash-projection" }
