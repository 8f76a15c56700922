package classify

import (
	"fmt"
	"math"
)

// CosineSimilarity returns the cosine similarity of two embeddings clamped to [0,1],
// the same scale the vector store reports.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return min(max(dot/(math.Sqrt(normA)*math.Sqrt(normB)), 0), 1), nil
}
