package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

// newConversation returns a conversation in its own project so tests sharing
// the database can filter on it.
func newConversation(project string, title string, text string, embedding []float32, startedAt time.Time) *model.Conversation {
	return &model.Conversation{
		Platform:        "claude",
		Project:         strPtr(project),
		Title:           title,
		PrimaryUserText: strPtr(text),
		Content:         title + " " + text,
		Topics:          []string{"postgres"},
		Metadata:        model.Metadata{"model": "claude-sonnet"},
		Embedding:       embedding,
		StartedAt:       startedAt,
	}
}

func TestConversationsNewConversationsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewConversationsDBHandler", func(t *testing.T) {
		handler, err := NewConversationsDBHandler(database, testEmbeddingDim, true)
		assert.NoError(t, err, "Expected NewConversationsDBHandler to not return an error")
		require.NotNil(t, handler, "Expected NewConversationsDBHandler to return a non-nil instance")
		require.NotNil(t, handler.db.Instance, "Expected handler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewConversationsDBHandler with nil database", func(t *testing.T) {
		_, err := NewConversationsDBHandler(nil, testEmbeddingDim, false)
		assert.Error(t, err, "Expected error when creating ConversationsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewConversationsDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewConversationsDBHandler(database, 0, false)
		assert.Error(t, err, "Expected error for zero embedding dimension")
	})
}

func TestConversationsInsertAndSelect(t *testing.T) {
	conversations, _ := initHandlers(t)
	ctx := context.Background()
	project := uuid.NewString()
	startedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Insert conversation with embedding", func(t *testing.T) {
		conversation := newConversation(project, "Index setup", "How do I create an hnsw index?", []float32{1, 0, 0, 0}, startedAt)

		err := conversations.InsertConversation(ctx, conversation)
		require.NoError(t, err, "Expected InsertConversation to not return an error")
		assert.NotEqual(t, uuid.Nil, conversation.ID, "Expected generated id")
		assert.False(t, conversation.CreatedAt.IsZero(), "Expected created_at to be set")
		assert.Equal(t, []float32{1, 0, 0, 0}, conversation.Embedding, "Expected embedding to round trip")
		assert.Nil(t, conversation.RelationshipsBuiltAt, "Expected relationships_built_at to be NULL")

		selected, err := conversations.SelectConversation(ctx, conversation.ID)
		require.NoError(t, err, "Expected SelectConversation to not return an error")
		assert.Equal(t, "Index setup", selected.Title, "Expected title to match")
		assert.Equal(t, project, *selected.Project, "Expected project to match")
		assert.Equal(t, []string{"postgres"}, selected.Topics, "Expected topics to match")
		assert.Equal(t, "claude-sonnet", selected.Metadata["model"], "Expected metadata to match")
		assert.True(t, startedAt.Equal(selected.StartedAt), "Expected started_at to match")
	})

	t.Run("Insert conversation without embedding or project", func(t *testing.T) {
		conversation := &model.Conversation{Platform: "chatgpt", Title: "No vector", Content: "plain"}

		err := conversations.InsertConversation(ctx, conversation)
		require.NoError(t, err, "Expected InsertConversation to not return an error")
		assert.Nil(t, conversation.Embedding, "Expected embedding to be nil")
		assert.Nil(t, conversation.Project, "Expected project to be nil")
		assert.Empty(t, conversation.Topics, "Expected no topics")

		_, err = conversations.SelectEmbedding(ctx, conversation.ID)
		assert.ErrorIs(t, err, model.ErrEmbeddingNotFound, "Expected ErrEmbeddingNotFound for missing embedding")

		pending, err := conversations.SelectConversationsWithoutEmbedding(ctx, 1000)
		require.NoError(t, err, "Expected SelectConversationsWithoutEmbedding to not return an error")
		found := false
		for _, p := range pending {
			found = found || p.ID == conversation.ID
		}
		assert.True(t, found, "Expected conversation to be pending embedding")

		err = conversations.UpdateEmbedding(ctx, conversation.ID, []float32{0, 1, 0, 0})
		require.NoError(t, err, "Expected UpdateEmbedding to not return an error")

		embedding, err := conversations.SelectEmbedding(ctx, conversation.ID)
		require.NoError(t, err, "Expected SelectEmbedding to not return an error")
		assert.Equal(t, []float32{0, 1, 0, 0}, embedding, "Expected updated embedding")
	})

	t.Run("Select unknown conversation", func(t *testing.T) {
		_, err := conversations.SelectConversation(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrConversationNotFound, "Expected ErrConversationNotFound")

		_, err = conversations.SelectConversationSummary(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrConversationNotFound, "Expected ErrConversationNotFound for summary")

		_, err = conversations.SelectEmbedding(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrEmbeddingNotFound, "Expected ErrEmbeddingNotFound for unknown conversation")

		err = conversations.UpdateEmbedding(ctx, uuid.New(), []float32{1, 1, 1, 1})
		assert.ErrorIs(t, err, model.ErrConversationNotFound, "Expected ErrConversationNotFound on update")
	})

	t.Run("Select conversation summary", func(t *testing.T) {
		conversation := newConversation(project, "Summary", "Summarize me", nil, startedAt)
		require.NoError(t, conversations.InsertConversation(ctx, conversation))

		summary, err := conversations.SelectConversationSummary(ctx, conversation.ID)
		require.NoError(t, err, "Expected SelectConversationSummary to not return an error")
		assert.Equal(t, conversation.ID, summary.ID, "Expected id to match")
		assert.Equal(t, "Summarize me", *summary.PrimaryUserText, "Expected primary text to match")
		assert.Equal(t, []string{"postgres"}, summary.Topics, "Expected topics to match")
	})

	t.Run("Mark relationships built and delete", func(t *testing.T) {
		conversation := newConversation(project, "Marked", "mark", nil, startedAt)
		require.NoError(t, conversations.InsertConversation(ctx, conversation))

		builtAt := time.Now().UTC().Truncate(time.Millisecond)
		err := conversations.MarkRelationshipsBuilt(ctx, conversation.ID, builtAt)
		require.NoError(t, err, "Expected MarkRelationshipsBuilt to not return an error")

		selected, err := conversations.SelectConversation(ctx, conversation.ID)
		require.NoError(t, err)
		require.NotNil(t, selected.RelationshipsBuiltAt, "Expected relationships_built_at to be set")
		assert.True(t, builtAt.Equal(*selected.RelationshipsBuiltAt), "Expected relationships_built_at to match")

		err = conversations.DeleteConversation(ctx, conversation.ID)
		assert.NoError(t, err, "Expected DeleteConversation to not return an error")

		err = conversations.DeleteConversation(ctx, conversation.ID)
		assert.ErrorIs(t, err, model.ErrConversationNotFound, "Expected second delete to report not found")
	})
}

func TestConversationsLexicalSearch(t *testing.T) {
	conversations, _ := initHandlers(t)
	ctx := context.Background()
	project := uuid.NewString()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	strong := newConversation(project, "pgvector hnsw index", "pgvector hnsw index tuning for pgvector", nil, base)
	weak := newConversation(project, "Postgres notes", "a short note that mentions pgvector once", nil, base.Add(time.Hour))
	other := newConversation(project, "Gardening", "tomatoes and basil", nil, base.Add(2*time.Hour))
	for _, c := range []*model.Conversation{strong, weak, other} {
		require.NoError(t, conversations.InsertConversation(ctx, c))
	}

	t.Run("Matching conversations are ranked by relevance", func(t *testing.T) {
		hits, err := conversations.LexicalSearch(ctx, "pgvector", model.Filters{Project: project}, 10)
		require.NoError(t, err, "Expected LexicalSearch to not return an error")
		require.Len(t, hits, 2, "Expected two matching conversations")
		assert.Equal(t, strong.ID, hits[0].RecordID, "Expected the conversation mentioning pgvector more often first")
		assert.Equal(t, model.SourceLexical, hits[0].Source, "Expected lexical source")
		assert.GreaterOrEqual(t, hits[0].RawScore, hits[1].RawScore, "Expected descending scores")
		assert.True(t, base.Equal(hits[0].RecordedAt), "Expected recorded_at to be started_at")
	})

	t.Run("Time filters restrict results", func(t *testing.T) {
		from := base.Add(30 * time.Minute)
		hits, err := conversations.LexicalSearch(ctx, "pgvector", model.Filters{Project: project, From: &from}, 10)
		require.NoError(t, err, "Expected LexicalSearch to not return an error")
		require.Len(t, hits, 1, "Expected one conversation after from")
		assert.Equal(t, weak.ID, hits[0].RecordID, "Expected the later conversation")
	})

	t.Run("Websearch syntax without matches returns empty", func(t *testing.T) {
		hits, err := conversations.LexicalSearch(ctx, `"quantum entanglement" -basil`, model.Filters{Project: project}, 10)
		assert.NoError(t, err, "Expected LexicalSearch to not return an error")
		assert.Empty(t, hits, "Expected no hits")
	})
}

func TestConversationsVectorSearch(t *testing.T) {
	conversations, _ := initHandlers(t)
	ctx := context.Background()
	project := uuid.NewString()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	exact := newConversation(project, "exact", "exact", []float32{1, 0, 0, 0}, base)
	near := newConversation(project, "close", "close", []float32{0.9, 0.1, 0, 0}, base.Add(time.Hour))
	opposite := newConversation(project, "opposite", "opposite", []float32{-1, 0, 0, 0}, base.Add(2*time.Hour))
	unembedded := newConversation(project, "none", "none", nil, base)
	for _, c := range []*model.Conversation{exact, near, opposite, unembedded} {
		require.NoError(t, conversations.InsertConversation(ctx, c))
	}

	t.Run("Nearest neighbors ordered by cosine similarity", func(t *testing.T) {
		hits, err := conversations.VectorSearch(ctx, []float32{1, 0, 0, 0}, model.Filters{Project: project}, 10)
		require.NoError(t, err, "Expected VectorSearch to not return an error")
		require.Len(t, hits, 3, "Expected only embedded conversations")
		assert.Equal(t, exact.ID, hits[0].RecordID, "Expected exact match first")
		assert.InDelta(t, 1.0, hits[0].RawScore, 1e-6, "Expected similarity 1 for exact match")
		assert.Equal(t, near.ID, hits[1].RecordID, "Expected close match second")
		assert.Equal(t, opposite.ID, hits[2].RecordID, "Expected opposite last")
		assert.Equal(t, 0.0, hits[2].RawScore, "Expected negative similarity to be clamped to 0")
		assert.Equal(t, model.SourceVector, hits[0].Source, "Expected vector source")
	})

	t.Run("Exclusion and minimum similarity", func(t *testing.T) {
		hits, err := conversations.VectorSearch(ctx, []float32{1, 0, 0, 0}, model.Filters{
			Project:       project,
			MinSimilarity: 0.8,
			ExcludeIDs:    []uuid.UUID{exact.ID},
		}, 10)
		require.NoError(t, err, "Expected VectorSearch to not return an error")
		require.Len(t, hits, 1, "Expected only the close conversation")
		assert.Equal(t, near.ID, hits[0].RecordID, "Expected close match")
	})

	t.Run("Limit is honored", func(t *testing.T) {
		hits, err := conversations.VectorSearch(ctx, []float32{1, 0, 0, 0}, model.Filters{Project: project}, 1)
		require.NoError(t, err, "Expected VectorSearch to not return an error")
		assert.Len(t, hits, 1, "Expected limit to be applied")
	})

	t.Run("Empty vector is rejected", func(t *testing.T) {
		_, err := conversations.VectorSearch(ctx, nil, model.Filters{}, 10)
		assert.Error(t, err, "Expected error for empty query vector")
	})
}
