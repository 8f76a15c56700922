package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/core/classify"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
	"golang.org/x/sync/errgroup"
)

// EmbeddingStore returns stored conversation embeddings.
// A missing embedding is reported as model.ErrEmbeddingNotFound.
type EmbeddingStore interface {
	SelectEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)
}

// NeighborSearcher finds conversations with similar embeddings.
type NeighborSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error)
}

// SummaryStore returns the classification view of a conversation.
type SummaryStore interface {
	SelectConversationSummary(ctx context.Context, id uuid.UUID) (*model.ConversationSummary, error)
}

// BuildMarker records that the relationships of a conversation were built.
type BuildMarker interface {
	MarkRelationshipsBuilt(ctx context.Context, id uuid.UUID, builtAt time.Time) error
}

// ConversationStore is everything the builder reads from the conversations table.
type ConversationStore interface {
	EmbeddingStore
	NeighborSearcher
	SummaryStore
	BuildMarker
}

// EdgeStore persists relationship edges.
type EdgeStore interface {
	UpsertRelationshipEdge(ctx context.Context, edge *model.RelationshipEdge) error
	SelectConversationsPendingRelationships(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ClassifyFunc labels the relationship between two conversations.
type ClassifyFunc func(source, target *model.ConversationSummary, similarity float64) model.RelationshipType

// Builder turns vector neighbors into classified relationship edges.
type Builder struct {
	conversations ConversationStore
	edges         EdgeStore
	classify      ClassifyFunc
	config        model.BuildConfig
	log           *slog.Logger
	now           func() time.Time
}

// NewBuilder creates a new relationship graph builder.
func NewBuilder(conversations ConversationStore, edges EdgeStore, config model.BuildConfig, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = helper.DiscardLogger()
	}
	return &Builder{
		conversations: conversations,
		edges:         edges,
		classify:      classify.Classify,
		config:        config,
		log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the build configuration.
func (b *Builder) Config() model.BuildConfig {
	return b.config
}

// BuildRelationships classifies the relationship of a conversation to each of
// its nearest neighbors and upserts one edge per neighbor.
// minSimilarity <= 0 and maxNeighbors <= 0 fall back to the configured defaults.
// builds_on edges point from the newer to the older conversation, all other
// edges from the conversation to its neighbor.
func (b *Builder) BuildRelationships(ctx context.Context, conversationID uuid.UUID, minSimilarity float64, maxNeighbors int) ([]*model.RelationshipEdge, error) {
	if minSimilarity <= 0 {
		minSimilarity = b.config.MinSimilarity
	}
	if maxNeighbors <= 0 {
		maxNeighbors = b.config.MaxNeighbors
	}

	embedding, err := b.conversations.SelectEmbedding(ctx, conversationID)
	if err != nil {
		return nil, helper.NewError("select embedding", err)
	}

	source, err := b.conversations.SelectConversationSummary(ctx, conversationID)
	if err != nil {
		return nil, helper.NewError("select conversation summary", err)
	}

	// One extra candidate in case the store returns the conversation itself.
	hits, err := b.conversations.VectorSearch(ctx, embedding, model.Filters{
		MinSimilarity: minSimilarity,
		ExcludeIDs:    []uuid.UUID{conversationID},
	}, maxNeighbors+1)
	if err != nil {
		return nil, helper.NewError("vector neighbors", err)
	}

	detectedAt := b.now()
	edges := []*model.RelationshipEdge{}
	for _, hit := range hits {
		if hit.RecordID == conversationID || hit.RawScore < minSimilarity {
			continue
		}
		if len(edges) == maxNeighbors {
			break
		}

		neighbor, err := b.conversations.SelectConversationSummary(ctx, hit.RecordID)
		if errors.Is(err, model.ErrConversationNotFound) {
			b.log.Warn("Skipping vanished neighbor", "conversation_id", conversationID, "neighbor_id", hit.RecordID)
			continue
		} else if err != nil {
			return edges, helper.NewError("select neighbor summary", err)
		}

		edge := newEdge(source, neighbor, hit.RawScore, b.classify(source, neighbor, hit.RawScore), detectedAt)
		err = b.edges.UpsertRelationshipEdge(ctx, edge)
		if err != nil {
			return edges, helper.NewError("upsert relationship edge", err)
		}
		edges = append(edges, edge)
	}

	err = b.conversations.MarkRelationshipsBuilt(ctx, conversationID, detectedAt)
	if err != nil {
		return edges, helper.NewError("mark relationships built", err)
	}

	b.log.Info("Built relationships", "conversation_id", conversationID, "candidates", len(hits), "edges", len(edges))

	return edges, nil
}

// BatchBuild builds the relationships of up to limit conversations that were
// embedded but never processed, on a bounded worker pool.
// Failures of single conversations are counted and never stop the batch.
// Cancellation is checked before each conversation starts; conversations
// already in progress finish. On cancellation the summary is returned with the context error.
func (b *Builder) BatchBuild(ctx context.Context, limit int, minSimilarity float64) (*model.BatchSummary, error) {
	if limit <= 0 {
		limit = b.config.BatchLimit
	}

	ids, err := b.edges.SelectConversationsPendingRelationships(ctx, limit)
	if err != nil {
		return nil, helper.NewError("select pending conversations", err)
	}

	summary := &model.BatchSummary{Failures: map[uuid.UUID]string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(b.config.Workers, 1))

	dispatched := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		dispatched++

		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				summary.Remaining++
				mu.Unlock()
				return nil
			}

			edges, err := b.BuildRelationships(context.WithoutCancel(ctx), id, minSimilarity, b.config.MaxNeighbors)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Success++
				summary.EdgesCreated += len(edges)
			case errors.Is(err, model.ErrEmbeddingNotFound):
				summary.Skipped++
				b.log.Warn("Skipping conversation without embedding", "conversation_id", id)
			default:
				summary.Failed++
				summary.Failures[id] = err.Error()
				b.log.Error("Error building relationships", "conversation_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Remaining += len(ids) - dispatched

	b.log.Info(
		"Batch relationship build finished",
		"selected", len(ids),
		"success", summary.Success,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"remaining", summary.Remaining,
		"edges", summary.EdgesCreated,
	)

	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		return summary, err
	}

	return summary, nil
}

func newEdge(source, neighbor *model.ConversationSummary, similarity float64, relationshipType model.RelationshipType, detectedAt time.Time) *model.RelationshipEdge {
	edge := &model.RelationshipEdge{
		SourceID:         source.ID,
		TargetID:         neighbor.ID,
		SimilarityScore:  min(max(similarity, 0), 1),
		RelationshipType: relationshipType,
		DetectedAt:       detectedAt,
	}
	if relationshipType == model.RelationshipBuildsOn && neighbor.StartedAt.After(source.StartedAt) {
		edge.SourceID, edge.TargetID = neighbor.ID, source.ID
	}
	return edge
}
