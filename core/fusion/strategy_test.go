package fusion

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategy(t *testing.T) {
	engine := NewEngine(&fakeLexical{}, &fakeVector{}, fakeEmbed, testConfig(), nil)

	t.Run("Known names", func(t *testing.T) {
		for name, expected := range map[string]Strategy{
			"":              &HybridStrategy{},
			StrategyHybrid:  &HybridStrategy{},
			StrategyLexical: &LexicalOnlyStrategy{},
			StrategyVector:  &VectorOnlyStrategy{},
		} {
			strategy, err := NewStrategy(engine, name)
			require.NoError(t, err, "Expected strategy %q", name)
			assert.IsType(t, expected, strategy, "Expected matching strategy type for %q", name)
		}
	})

	t.Run("Unknown name", func(t *testing.T) {
		_, err := NewStrategy(engine, "graph")
		assert.ErrorIs(t, err, model.ErrInvalidQuery, "Expected ErrInvalidQuery")
	})
}

func TestSingleSourceStrategies(t *testing.T) {
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	t.Run("Lexical only", func(t *testing.T) {
		lexical := &fakeLexical{hits: []*model.SearchHit{hit(a, 1, model.SourceLexical, 0)}}
		vector := &fakeVector{hits: []*model.SearchHit{hit(b, 1, model.SourceVector, 0)}}
		strategy := NewLexicalOnlyStrategy(NewEngine(lexical, vector, fakeEmbed, testConfig(), nil))

		response, err := strategy.Retrieve(ctx, "query", model.Filters{}, 5)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a}, response.IDs(), "Expected lexical results only")
		assert.False(t, response.Partial, "Expected a complete single source response")
		assert.Zero(t, vector.calls.Load(), "Expected no vector call")
	})

	t.Run("Vector only", func(t *testing.T) {
		lexical := &fakeLexical{hits: []*model.SearchHit{hit(a, 1, model.SourceLexical, 0)}}
		vector := &fakeVector{hits: []*model.SearchHit{hit(b, 1, model.SourceVector, 0)}}
		strategy := NewVectorOnlyStrategy(NewEngine(lexical, vector, fakeEmbed, testConfig(), nil))

		response, err := strategy.Retrieve(ctx, "query", model.Filters{}, 5)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{b}, response.IDs(), "Expected vector results only")
		assert.Zero(t, lexical.calls.Load(), "Expected no lexical call")
	})

	t.Run("Vector only without embedder is unavailable", func(t *testing.T) {
		strategy := NewVectorOnlyStrategy(NewEngine(&fakeLexical{}, &fakeVector{}, nil, testConfig(), nil))

		_, err := strategy.Retrieve(ctx, "query", model.Filters{}, 5)
		assert.ErrorIs(t, err, model.ErrSearchUnavailable, "Expected ErrSearchUnavailable")
		assert.ErrorIs(t, err, model.ErrEmbeddingFailure, "Expected the embedding cause")
	})

	t.Run("Hybrid", func(t *testing.T) {
		lexical := &fakeLexical{hits: []*model.SearchHit{hit(a, 1, model.SourceLexical, 0)}}
		vector := &fakeVector{hits: []*model.SearchHit{hit(a, 1, model.SourceVector, 0)}}
		strategy := NewHybridStrategy(NewEngine(lexical, vector, fakeEmbed, testConfig(), nil))

		response, err := strategy.Retrieve(ctx, "query", model.Filters{}, 5)
		require.NoError(t, err)
		require.Len(t, response.Results, 1)
		assert.Len(t, response.Results[0].ContributingSources, 2, "Expected both sources")
	})
}
