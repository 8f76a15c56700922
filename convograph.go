package convograph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/core/classify"
	"github.com/siherrmann/convograph/core/fusion"
	"github.com/siherrmann/convograph/core/graph"
	"github.com/siherrmann/convograph/core/pipeline"
	"github.com/siherrmann/convograph/database"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
	loadSql "github.com/siherrmann/convograph/sql"
)

// Convograph provides a unified interface to storage, hybrid search and the relationship graph
type Convograph struct {
	DB            *helper.Database
	Conversations *database.ConversationsDBHandler
	Relationships *database.RelationshipsDBHandler
	Pipeline      *pipeline.Pipeline // Topic extraction and optional embedder
	Engine        *fusion.Engine     // Hybrid search
	Builder       *graph.Builder     // Relationship graph builder
	// Logging
	log *slog.Logger
}

// Options configure a Convograph instance.
type Options struct {
	Fusion model.FusionConfig
	Build  model.BuildConfig
	Logger *slog.Logger
}

// DefaultOptions reads fusion and build configuration from the environment,
// falling back to the defaults for unset variables.
func DefaultOptions() (*Options, error) {
	options := &Options{
		Fusion: model.DefaultFusionConfig(),
		Build:  model.DefaultBuildConfig(),
		Logger: helper.NewLogger(os.Stdout, slog.LevelInfo),
	}

	err := helper.LoadConfig(&options.Fusion)
	if err != nil {
		return nil, helper.NewError("load fusion config", err)
	}
	err = helper.LoadConfig(&options.Build)
	if err != nil {
		return nil, helper.NewError("load build config", err)
	}

	err = options.validate()
	if err != nil {
		return nil, err
	}

	return options, nil
}

func (o *Options) validate() error {
	if err := o.Fusion.Validate(); err != nil {
		return helper.NewError("validate fusion config", err)
	}
	if err := o.Build.Validate(); err != nil {
		return helper.NewError("validate build config", err)
	}
	return nil
}

// NewConvograph creates a new Convograph instance with all handlers initialized
// and configuration read from the environment.
func NewConvograph(config *helper.DatabaseConfiguration, embeddingDim int) (*Convograph, error) {
	options, err := DefaultOptions()
	if err != nil {
		return nil, err
	}
	return NewConvographWithOptions(config, embeddingDim, options)
}

// NewConvographWithOptions creates a new Convograph instance with explicit options.
// No embedder is set; use SetEmbedder or UseDefaultPipeline to enable vector search.
func NewConvographWithOptions(config *helper.DatabaseConfiguration, embeddingDim int, options *Options) (*Convograph, error) {
	if options == nil {
		return nil, helper.NewError("options validation", fmt.Errorf("options are nil"))
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = helper.DiscardLogger()
	}

	db, err := helper.NewDatabase("convograph", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Conversations first, relationship edges reference them.
	// force=false to not reload if functions already exist
	conversations, err := database.NewConversationsDBHandler(db, embeddingDim, false)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create conversations handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create relationships handler", err)
	}

	return &Convograph{
		DB:            db,
		Conversations: conversations,
		Relationships: relationships,
		Pipeline:      pipeline.NewPipeline(nil, pipeline.DefaultTopicExtractor()),
		Engine:        fusion.NewEngine(conversations, conversations, nil, options.Fusion, logger),
		Builder:       graph.NewBuilder(conversations, relationships, options.Build, logger),
		log:           logger,
	}, nil
}

// Close closes the database connection
func (c *Convograph) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// SetEmbedder sets the embedder used for ingestion and query embedding.
func (c *Convograph) SetEmbedder(embedder pipeline.EmbedFunc) {
	if c.Pipeline == nil {
		c.Pipeline = pipeline.NewPipeline(nil, pipeline.DefaultTopicExtractor())
	}
	c.Pipeline.Embedder = embedder
	if c.Engine != nil {
		c.Engine.SetEmbedder(embedder)
	}
}

// UseDefaultPipeline sets up the all-MiniLM-L6-v2 embedder (384 dimensions)
// and the keyword topic extractor.
func (c *Convograph) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	c.Pipeline = pipeline.NewPipeline(embedder, pipeline.DefaultTopicExtractor())
	c.Engine.SetEmbedder(embedder)
	return nil
}

// IngestConversation extracts topics, embeds and stores a conversation.
// If embedding fails the conversation is stored without embedding and
// picked up by EmbedPending later.
func (c *Convograph) IngestConversation(ctx context.Context, conversation *model.Conversation) error {
	if strings.TrimSpace(conversation.Content) == "" && strings.TrimSpace(conversation.Title) == "" {
		return helper.NewError("ingest conversation", fmt.Errorf("conversation has neither title nor content"))
	}
	if conversation.Platform == "" {
		return helper.NewError("ingest conversation", fmt.Errorf("platform is required"))
	}

	if c.Pipeline != nil {
		err := c.Pipeline.Process(ctx, conversation)
		if errors.Is(err, model.ErrEmbeddingFailure) {
			c.log.Warn("Storing conversation without embedding", slog.String("title", conversation.Title), slog.String("error", err.Error()))
		} else if err != nil {
			return helper.NewError("process conversation", err)
		}
	}

	err := c.Conversations.InsertConversation(ctx, conversation)
	if err != nil {
		return helper.NewError("insert conversation", err)
	}

	c.log.Info("Ingested conversation", slog.String("conversation_id", conversation.ID.String()), slog.String("platform", conversation.Platform), slog.Int("topics", len(conversation.Topics)))

	return nil
}

// EmbedPending embeds up to limit conversations stored without embedding.
// A limit <= 0 uses the configured batch limit.
// It returns the number of conversations embedded; failures are joined into the error.
func (c *Convograph) EmbedPending(ctx context.Context, limit int) (int, error) {
	if c.Pipeline == nil || c.Pipeline.Embedder == nil {
		return 0, helper.NewError("embed pending", fmt.Errorf("embedder not set, use SetEmbedder() first"))
	}
	if limit <= 0 {
		limit = c.Builder.Config().BatchLimit
	}

	conversations, err := c.Conversations.SelectConversationsWithoutEmbedding(ctx, limit)
	if err != nil {
		return 0, helper.NewError("select conversations without embedding", err)
	}

	embedded := 0
	var errs []error
	for _, conversation := range conversations {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}

		embedding, err := c.Pipeline.Embedder(ctx, conversation.EmbeddingText())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w: %w", conversation.ID, model.ErrEmbeddingFailure, err))
			continue
		}

		err = c.Conversations.UpdateEmbedding(ctx, conversation.ID, embedding)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", conversation.ID, err))
			continue
		}
		embedded++
	}

	c.log.Info("Embedded pending conversations", slog.Int("embedded", embedded), slog.Int("failed", len(errs)))

	return embedded, errors.Join(errs...)
}

// Conversation returns a stored conversation.
func (c *Convograph) Conversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	return c.Conversations.SelectConversation(ctx, id)
}

// DeleteConversation deletes a conversation together with its relationship edges.
func (c *Convograph) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	return c.Conversations.DeleteConversation(ctx, id)
}

// Search performs hybrid search fusing lexical and vector results.
func (c *Convograph) Search(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	return c.Engine.Fuse(ctx, query, filters, limit)
}

// SearchWithMode performs search with the named strategy: hybrid, lexical or vector.
func (c *Convograph) SearchWithMode(ctx context.Context, mode string, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	strategy, err := fusion.NewStrategy(c.Engine, mode)
	if err != nil {
		return nil, helper.NewError("search strategy", err)
	}
	return strategy.Retrieve(ctx, query, filters, limit)
}

// Classify labels the relationship between two stored conversations
// using the cosine similarity of their embeddings.
func (c *Convograph) Classify(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) (model.RelationshipType, float64, error) {
	source, err := c.Conversations.SelectConversationSummary(ctx, sourceID)
	if err != nil {
		return "", 0, helper.NewError("select source summary", err)
	}
	target, err := c.Conversations.SelectConversationSummary(ctx, targetID)
	if err != nil {
		return "", 0, helper.NewError("select target summary", err)
	}

	sourceEmbedding, err := c.Conversations.SelectEmbedding(ctx, sourceID)
	if err != nil {
		return "", 0, helper.NewError("select source embedding", err)
	}
	targetEmbedding, err := c.Conversations.SelectEmbedding(ctx, targetID)
	if err != nil {
		return "", 0, helper.NewError("select target embedding", err)
	}

	similarity, err := classify.CosineSimilarity(sourceEmbedding, targetEmbedding)
	if err != nil {
		return "", 0, helper.NewError("similarity", err)
	}

	return classify.Classify(source, target, similarity), similarity, nil
}

// BuildRelationships builds the relationship edges of one conversation.
// minSimilarity <= 0 and maxNeighbors <= 0 use the configured defaults.
func (c *Convograph) BuildRelationships(ctx context.Context, conversationID uuid.UUID, minSimilarity float64, maxNeighbors int) ([]*model.RelationshipEdge, error) {
	return c.Builder.BuildRelationships(ctx, conversationID, minSimilarity, maxNeighbors)
}

// BatchBuild builds relationships for conversations not processed yet.
func (c *Convograph) BatchBuild(ctx context.Context, limit int, minSimilarity float64) (*model.BatchSummary, error) {
	return c.Builder.BatchBuild(ctx, limit, minSimilarity)
}

// Related returns the conversations directly connected to a conversation.
func (c *Convograph) Related(ctx context.Context, conversationID uuid.UUID, relationshipTypes []model.RelationshipType, outgoingOnly bool) ([]*graph.TraversalResult, error) {
	return graph.Related(ctx, c.graphDB(), conversationID, relationshipTypes, outgoingOnly)
}

// BFSTraversal performs breadth-first search over relationship edges
func (c *Convograph) BFSTraversal(ctx context.Context, conversationID uuid.UUID, maxHops int, relationshipTypes []model.RelationshipType, followIncoming bool) ([]*graph.TraversalResult, error) {
	return graph.BFS(ctx, c.graphDB(), conversationID, maxHops, relationshipTypes, followIncoming)
}

// DFSTraversal performs depth-first search over relationship edges
func (c *Convograph) DFSTraversal(ctx context.Context, conversationID uuid.UUID, maxHops int, relationshipTypes []model.RelationshipType, followIncoming bool) ([]*graph.TraversalResult, error) {
	return graph.DFS(ctx, c.graphDB(), conversationID, maxHops, relationshipTypes, followIncoming)
}

// RelationshipTypeCounts returns the number of edges per relationship type.
func (c *Convograph) RelationshipTypeCounts(ctx context.Context) (map[model.RelationshipType]int, error) {
	return c.Relationships.SelectRelationshipTypeCounts(ctx)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (c *Convograph) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return c.Conversations.ChangeIndexType(ctx, indexType, params)
}

func (c *Convograph) graphDB() graph.GraphDB {
	return graph.NewGraphDB(c.Conversations, c.Relationships)
}
