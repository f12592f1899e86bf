package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/socraticlab/recall/pkg/types"
)

// serializeVector encodes a float32 vector as a little-endian blob.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector decodes a blob back into a float32 vector. A blob whose
// length disagrees with the recorded dimension is corruption, not something
// to pad or truncate.
func deserializeVector(blob []byte, dimension int) ([]float32, error) {
	if len(blob) != dimension*4 {
		return nil, fmt.Errorf("%w: vector blob is %d bytes, want %d for dimension %d",
			types.ErrIndexCorruption, len(blob), dimension*4, dimension)
	}
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
