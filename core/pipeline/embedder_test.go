package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEmbedder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err, "Expected DefaultEmbedder to not return an error")

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder(context.Background(), "How do I configure the MCP server?")
		require.NoError(t, err, "Expected embedding to not return an error")
		assert.Len(t, embedding, DefaultEmbeddingDimension, "all-MiniLM-L6-v2 produces 384-dimensional embeddings")

		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Expected embedding to contain non-zero values")
	})

	t.Run("Same text yields the same embedding", func(t *testing.T) {
		a, err := embedder(context.Background(), "hybrid search")
		require.NoError(t, err)
		b, err := embedder(context.Background(), "hybrid search")
		require.NoError(t, err)
		assert.Equal(t, a, b, "Expected deterministic embeddings")
	})

	t.Run("Cancelled context is honored", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := embedder(ctx, "text")
		assert.ErrorIs(t, err, context.Canceled, "Expected context error")
	})
}
