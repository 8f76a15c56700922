package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordTopicExtractor(t *testing.T) {
	t.Run("Most frequent terms first", func(t *testing.T) {
		extract := KeywordTopicExtractor(3)

		topics, err := extract("How do I tune the pgvector HNSW index? The pgvector index is slow, pgvector uses too much memory.")
		require.NoError(t, err, "Expected extraction to not return an error")
		assert.Equal(t, []string{"pgvector", "index", "tune"}, topics, "Expected frequency then first occurrence order")
	})

	t.Run("Stopwords, short words and numbers are dropped", func(t *testing.T) {
		extract := KeywordTopicExtractor(10)

		topics, err := extract("It is 2025 and we go to the db in 42 ms")
		require.NoError(t, err, "Expected extraction to not return an error")
		assert.Empty(t, topics, "Expected no topics")
	})

	t.Run("Technical tokens are kept", func(t *testing.T) {
		extract := KeywordTopicExtractor(10)

		topics, err := extract("Migrating node.js code to c++ with gRPC-gateway")
		require.NoError(t, err, "Expected extraction to not return an error")
		assert.Contains(t, topics, "node.js", "Expected dotted token")
		assert.Contains(t, topics, "c++", "Expected plus token")
		assert.Contains(t, topics, "grpc-gateway", "Expected dashed token")
	})

	t.Run("Extraction only depends on the given text", func(t *testing.T) {
		extract := KeywordTopicExtractor(2)

		first, _ := extract("redis cache eviction redis")
		_, _ = extract("completely different text about kubernetes")
		second, _ := extract("redis cache eviction redis")
		assert.Equal(t, first, second, "Expected stateless extraction")
	})

	t.Run("Non positive max uses default", func(t *testing.T) {
		extract := KeywordTopicExtractor(0)

		topics, err := extract("alpha bravo charlie delta echo foxtrot golf")
		require.NoError(t, err)
		assert.Len(t, topics, DefaultMaxTopics, "Expected default number of topics")
	})
}

func TestMergeTopics(t *testing.T) {
	t.Run("Deduplicates case insensitively and caps", func(t *testing.T) {
		merged := MergeTopics(3, []string{"Postgres", "##vec"}, []string{"postgres", "docker", "redis", "go"})
		assert.Equal(t, []string{"postgres", "docker", "redis"}, merged, "Expected merged topics")
	})
}

func TestEntityTopicExtractor(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping EntityTopicExtractor test in short mode (requires model download)")
	}

	extract, err := EntityTopicExtractor(5)
	require.NoError(t, err, "Expected EntityTopicExtractor to not return an error")

	t.Run("Extract topics with entities", func(t *testing.T) {
		topics, err := extract("Deploying Postgres on Google Cloud in Frankfurt")
		assert.NoError(t, err, "Expected extraction to not return an error")
		assert.NotEmpty(t, topics, "Expected topics")
		assert.LessOrEqual(t, len(topics), 5, "Expected at most five topics")
	})

	t.Run("Handle empty text", func(t *testing.T) {
		topics, err := extract("   ")
		assert.NoError(t, err, "Expected extraction to not return an error")
		assert.Empty(t, topics, "Expected no topics for empty text")
	})
}
