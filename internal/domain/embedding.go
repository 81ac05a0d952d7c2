package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Embedding is the fixed-length face descriptor produced by an embedding provider.
type Embedding []float64

// embeddingWordSize is the on-disk width of one component (IEEE-754 float64).
const embeddingWordSize = 8

// Bytes serializes the embedding as little-endian float64 words. The encoding
// preserves the exact bit pattern of every component.
func (e Embedding) Bytes() []byte {
	buf := make([]byte, len(e)*embeddingWordSize)
	for i, v := range e {
		binary.LittleEndian.PutUint64(buf[i*embeddingWordSize:], math.Float64bits(v))
	}
	return buf
}

// EmbeddingFromBytes is the inverse of Embedding.Bytes.
func EmbeddingFromBytes(b []byte) (Embedding, error) {
	if len(b)%embeddingWordSize != 0 {
		return nil, ErrInvalidEmbedding.WithError(
			fmt.Errorf("buffer length %d is not a multiple of %d", len(b), embeddingWordSize))
	}
	e := make(Embedding, len(b)/embeddingWordSize)
	for i := range e {
		e[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*embeddingWordSize:]))
	}
	return e, nil
}

// Float32 narrows the embedding for vector indexes. The narrowed copy is lossy
// and must never be used as the source of truth for matching.
func (e Embedding) Float32() []float32 {
	out := make([]float32, len(e))
	for i, v := range e {
		out[i] = float32(v)
	}
	return out
}

func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

func (e Embedding) Equal(other Embedding) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if math.Float64bits(e[i]) != math.Float64bits(other[i]) {
			return false
		}
	}
	return true
}

// CheckDimension returns ErrInvalidEmbedding when the vector length differs from dim.
func (e Embedding) CheckDimension(dim int) error {
	if len(e) != dim {
		return ErrInvalidEmbedding.WithError(fmt.Errorf("expected %d components, got %d", dim, len(e)))
	}
	return nil
}
