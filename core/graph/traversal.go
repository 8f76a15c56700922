package graph

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
)

// EdgeReader reads persisted relationship edges.
type EdgeReader interface {
	SelectEdgesFromConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error)
	SelectEdgesToConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error)
}

// GraphDB defines the interface for graph operations
type GraphDB interface {
	SummaryStore
	EdgeReader
}

type graphDB struct {
	SummaryStore
	EdgeReader
}

// NewGraphDB combines a summary store and an edge reader.
func NewGraphDB(summaries SummaryStore, edges EdgeReader) GraphDB {
	return graphDB{SummaryStore: summaries, EdgeReader: edges}
}

// TraversalResult contains a conversation and its distance from the start
type TraversalResult struct {
	Summary  *model.ConversationSummary `json:"summary"`
	Distance int                        `json:"distance"`
	Path     []uuid.UUID                `json:"path"`          // Path from the start to this conversation
	Via      *model.RelationshipEdge    `json:"via,omitempty"` // Edge this conversation was reached by
}

// BFS performs breadth-first search from a conversation
func BFS(ctx context.Context, db GraphDB, startID uuid.UUID, maxHops int, relationshipTypes []model.RelationshipType, followIncoming bool) ([]*TraversalResult, error) {
	start, err := db.SelectConversationSummary(ctx, startID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{startID: true}
	queue := []*TraversalResult{{
		Summary:  start,
		Distance: 0,
		Path:     []uuid.UUID{startID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		current := queue[0]
		queue = queue[1:]
		results = append(results, current)

		if current.Distance >= maxHops {
			continue
		}

		edges, err := adjacentEdges(ctx, db, current.Summary.ID, relationshipTypes, followIncoming)
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			nextID := otherEnd(edge, current.Summary.ID)
			if visited[nextID] {
				continue
			}

			next, err := db.SelectConversationSummary(ctx, nextID)
			if err != nil {
				continue // Skip if conversation is gone
			}
			visited[nextID] = true

			queue = append(queue, &TraversalResult{
				Summary:  next,
				Distance: current.Distance + 1,
				Path:     append(slices.Clone(current.Path), nextID),
				Via:      edge,
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search from a conversation
func DFS(ctx context.Context, db GraphDB, startID uuid.UUID, maxHops int, relationshipTypes []model.RelationshipType, followIncoming bool) ([]*TraversalResult, error) {
	start, err := db.SelectConversationSummary(ctx, startID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{}
	var results []*TraversalResult
	dfsRecursive(ctx, db, &TraversalResult{Summary: start, Path: []uuid.UUID{startID}}, maxHops, relationshipTypes, followIncoming, visited, &results)

	return results, ctx.Err()
}

func dfsRecursive(
	ctx context.Context,
	db GraphDB,
	current *TraversalResult,
	maxHops int,
	relationshipTypes []model.RelationshipType,
	followIncoming bool,
	visited map[uuid.UUID]bool,
	results *[]*TraversalResult,
) {
	visited[current.Summary.ID] = true
	*results = append(*results, current)

	if current.Distance >= maxHops || ctx.Err() != nil {
		return
	}

	edges, err := adjacentEdges(ctx, db, current.Summary.ID, relationshipTypes, followIncoming)
	if err != nil {
		return
	}

	for _, edge := range edges {
		nextID := otherEnd(edge, current.Summary.ID)
		if visited[nextID] {
			continue
		}

		next, err := db.SelectConversationSummary(ctx, nextID)
		if err != nil {
			continue
		}

		dfsRecursive(ctx, db, &TraversalResult{
			Summary:  next,
			Distance: current.Distance + 1,
			Path:     append(slices.Clone(current.Path), nextID),
			Via:      edge,
		}, maxHops, relationshipTypes, followIncoming, visited, results)
	}
}

// Related returns the conversations directly connected to a conversation,
// in both directions unless outgoingOnly is set.
func Related(ctx context.Context, db GraphDB, conversationID uuid.UUID, relationshipTypes []model.RelationshipType, outgoingOnly bool) ([]*TraversalResult, error) {
	results, err := BFS(ctx, db, conversationID, 1, relationshipTypes, !outgoingOnly)
	if err != nil {
		return nil, err
	}
	return results[1:], nil
}

// adjacentEdges returns outgoing edges, followed by incoming edges if requested,
// filtered by relationship type.
func adjacentEdges(ctx context.Context, db GraphDB, id uuid.UUID, relationshipTypes []model.RelationshipType, followIncoming bool) ([]*model.RelationshipEdge, error) {
	edges, err := db.SelectEdgesFromConversation(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	if followIncoming {
		incoming, err := db.SelectEdgesToConversation(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		edges = append(edges, incoming...)
	}

	if len(relationshipTypes) == 0 {
		return edges, nil
	}

	filtered := make([]*model.RelationshipEdge, 0, len(edges))
	for _, edge := range edges {
		if slices.Contains(relationshipTypes, edge.RelationshipType) {
			filtered = append(filtered, edge)
		}
	}
	return filtered, nil
}

func otherEnd(edge *model.RelationshipEdge, id uuid.UUID) uuid.UUID {
	if edge.SourceID == id {
		return edge.TargetID
	}
	return edge.SourceID
}
