package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
	loadSql "github.com/siherrmann/convograph/sql"
)

// ConversationsDBHandlerFunctions defines the interface for Conversations database operations.
type ConversationsDBHandlerFunctions interface {
	InsertConversation(ctx context.Context, conversation *model.Conversation) error
	SelectConversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	SelectConversationSummary(ctx context.Context, id uuid.UUID) (*model.ConversationSummary, error)
	SelectEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	SelectConversationsWithoutEmbedding(ctx context.Context, limit int) ([]*model.Conversation, error)
	LexicalSearch(ctx context.Context, query string, filters model.Filters, limit int) ([]*model.SearchHit, error)
	VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error)
	MarkRelationshipsBuilt(ctx context.Context, id uuid.UUID, builtAt time.Time) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error
}

// ConversationsDBHandler handles conversation storage, the full text index and the vector store.
type ConversationsDBHandler struct {
	db *helper.Database
}

// NewConversationsDBHandler creates a new conversations database handler.
// It loads the conversation SQL functions and creates the table with an
// embedding column of embeddingDim dimensions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewConversationsDBHandler(db *helper.Database, embeddingDim int, force bool) (*ConversationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	conversationsDbHandler := &ConversationsDBHandler{
		db: db,
	}

	err := loadSql.LoadConversationsSql(conversationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load conversations sql", err)
	}

	err = conversationsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ConversationsDBHandler")

	return conversationsDbHandler, nil
}

// CreateTable creates the 'conversations' table and its full text and vector indexes.
// If the table already exists, it does not create it again.
func (h *ConversationsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_conversations($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init conversations", err)
	}

	h.db.Logger.Info("Checked/created table conversations")

	return nil
}

// InsertConversation inserts a conversation and fills in the generated fields.
// A conversation without embedding is stored with a NULL vector.
func (h *ConversationsDBHandler) InsertConversation(ctx context.Context, conversation *model.Conversation) error {
	var startedAt *time.Time
	if !conversation.StartedAt.IsZero() {
		startedAt = &conversation.StartedAt
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_conversation($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		conversation.Platform,
		conversation.Project,
		conversation.Title,
		conversation.PrimaryUserText,
		conversation.Content,
		pq.Array(conversation.Topics),
		conversation.Metadata,
		vectorParam(conversation.Embedding),
		startedAt,
	)

	err := scanConversation(row, conversation)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectConversation retrieves a conversation by ID.
func (h *ConversationsDBHandler) SelectConversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_conversation($1)`,
		id,
	)

	conversation := &model.Conversation{}
	err := scanConversation(row, conversation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select conversation", fmt.Errorf("%w: %s", model.ErrConversationNotFound, id))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return conversation, nil
}

// SelectConversationSummary retrieves the fields used for relationship classification.
func (h *ConversationsDBHandler) SelectConversationSummary(ctx context.Context, id uuid.UUID) (*model.ConversationSummary, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_conversation_summary($1)`,
		id,
	)

	summary := &model.ConversationSummary{}
	err := row.Scan(
		&summary.ID,
		&summary.Project,
		&summary.StartedAt,
		pq.Array(&summary.Topics),
		&summary.PrimaryUserText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select conversation summary", fmt.Errorf("%w: %s", model.ErrConversationNotFound, id))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return summary, nil
}

// SelectEmbedding returns the stored embedding of a conversation.
// It returns model.ErrEmbeddingNotFound if the conversation has no embedding or does not exist.
func (h *ConversationsDBHandler) SelectEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_conversation_embedding($1)`,
		id,
	)

	var embedding *pgvector.Vector
	err := row.Scan(&embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select embedding", fmt.Errorf("%w: %w", model.ErrEmbeddingNotFound, model.ErrConversationNotFound))
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	if embedding == nil || len(embedding.Slice()) == 0 {
		return nil, helper.NewError("select embedding", fmt.Errorf("%w: %s", model.ErrEmbeddingNotFound, id))
	}

	return embedding.Slice(), nil
}

// UpdateEmbedding sets the embedding of a conversation.
func (h *ConversationsDBHandler) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) == 0 {
		return helper.NewError("update embedding", fmt.Errorf("embedding is empty"))
	}

	var found bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT update_conversation_embedding($1, $2)`,
		id,
		pgvector.NewVector(embedding),
	).Scan(&found)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if !found {
		return helper.NewError("update embedding", fmt.Errorf("%w: %s", model.ErrConversationNotFound, id))
	}

	return nil
}

// SelectConversationsWithoutEmbedding returns up to limit conversations stored without embedding, oldest first.
func (h *ConversationsDBHandler) SelectConversationsWithoutEmbedding(ctx context.Context, limit int) ([]*model.Conversation, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_conversations_without_embedding($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var conversations []*model.Conversation
	for rows.Next() {
		conversation := &model.Conversation{}
		err := scanConversation(rows, conversation)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		conversations = append(conversations, conversation)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return conversations, nil
}

// LexicalSearch runs a full text search (websearch syntax) ranked by ts_rank_cd.
func (h *ConversationsDBHandler) LexicalSearch(ctx context.Context, query string, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_conversations_lexical($1, $2, $3, $4, $5, $6)`,
		query,
		filters.ProjectParam(),
		filters.PlatformParam(),
		filters.From,
		filters.To,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanSearchHits(rows, model.SourceLexical)
}

// VectorSearch returns the nearest conversations by cosine similarity.
// Scores are clamped to [0, 1]. filters.ExcludeIDs and filters.MinSimilarity are applied.
func (h *ConversationsDBHandler) VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	if len(vector) == 0 {
		return nil, helper.NewError("vector search", fmt.Errorf("query vector is empty"))
	}

	var excludeParam interface{}
	if len(filters.ExcludeIDs) > 0 {
		excludeParam = pq.Array(filters.ExcludeIDs)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_conversations_vector($1, $2, $3, $4, $5, $6, $7, $8)`,
		pgvector.NewVector(vector),
		filters.ProjectParam(),
		filters.PlatformParam(),
		filters.From,
		filters.To,
		filters.MinSimilarity,
		excludeParam,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hits, err := scanSearchHits(rows, model.SourceVector)
	if err != nil {
		return nil, err
	}
	for _, hit := range hits {
		hit.RawScore = clamp01(hit.RawScore)
	}

	return hits, nil
}

// MarkRelationshipsBuilt records that relationships of a conversation were built at builtAt.
func (h *ConversationsDBHandler) MarkRelationshipsBuilt(ctx context.Context, id uuid.UUID, builtAt time.Time) error {
	var found bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT mark_relationships_built($1, $2)`,
		id,
		builtAt,
	).Scan(&found)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if !found {
		return helper.NewError("mark relationships built", fmt.Errorf("%w: %s", model.ErrConversationNotFound, id))
	}
	return nil
}

// DeleteConversation deletes a conversation. Its relationship edges are removed by cascade.
func (h *ConversationsDBHandler) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_conversation($1)`,
		id,
	).Scan(&found)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if !found {
		return helper.NewError("delete conversation", fmt.Errorf("%w: %s", model.ErrConversationNotFound, id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner, conversation *model.Conversation) error {
	var embedding *pgvector.Vector
	err := row.Scan(
		&conversation.ID,
		&conversation.Platform,
		&conversation.Project,
		&conversation.Title,
		&conversation.PrimaryUserText,
		&conversation.Content,
		pq.Array(&conversation.Topics),
		&conversation.Metadata,
		&embedding,
		&conversation.StartedAt,
		&conversation.CreatedAt,
		&conversation.RelationshipsBuiltAt,
	)
	if err != nil {
		return err
	}

	conversation.Embedding = nil
	if embedding != nil {
		conversation.Embedding = embedding.Slice()
	}
	return nil
}

func scanSearchHits(rows *sql.Rows, source model.Source) ([]*model.SearchHit, error) {
	var hits []*model.SearchHit
	for rows.Next() {
		hit := &model.SearchHit{Source: source}
		err := rows.Scan(
			&hit.RecordID,
			&hit.RawScore,
			&hit.RecordedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		hits = append(hits, hit)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

func vectorParam(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
