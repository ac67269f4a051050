package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// SerializeEmbedding converts a float32 vector to its little-endian byte
// blob representation, 4 bytes per dimension. nil in, nil out.
func SerializeEmbedding(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	for _, val := range vector {
		if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
			return nil, fmt.Errorf("storage: serializing embedding: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DeserializeEmbedding converts a little-endian f32 byte blob back to a
// vector. Rejects blobs whose length is not a multiple of 4.
func DeserializeEmbedding(data []byte) ([]float32, error) {
	if data == nil {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("storage: embedding blob length %d is not a multiple of 4", len(data))
	}

	buf := bytes.NewReader(data)
	vector := make([]float32, 0, len(data)/4)
	for buf.Len() > 0 {
		var val float32
		if err := binary.Read(buf, binary.LittleEndian, &val); err != nil {
			return nil, fmt.Errorf("storage: deserializing embedding: %w", err)
		}
		vector = append(vector, val)
	}
	return vector, nil
}

// CosineSimilarity returns the cosine similarity of two equal-length
// vectors, rescaled from [-1,1] to [0,1] as (cos+1)/2, as the storage
// contract requires, so callers can treat scores returned by VectorSearcher
// as a plain similarity score. Mismatched, empty or zero-norm vectors
// return 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
