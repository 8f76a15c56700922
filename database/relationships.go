package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
	loadSql "github.com/siherrmann/convograph/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for relationship edge database operations.
type RelationshipsDBHandlerFunctions interface {
	UpsertRelationshipEdge(ctx context.Context, edge *model.RelationshipEdge) error
	SelectRelationshipEdge(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) (*model.RelationshipEdge, error)
	SelectEdgesFromConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error)
	SelectEdgesToConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error)
	SelectRelationshipTypeCounts(ctx context.Context) (map[model.RelationshipType]int, error)
	SelectConversationsPendingRelationships(ctx context.Context, limit int) ([]uuid.UUID, error)
	DeleteRelationshipEdge(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) error
}

// RelationshipsDBHandler handles relationship edge operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationship edges database handler.
// The conversations table has to exist, edges reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the relationship type enum and the 'relationship_edges' table.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationship_edges();`)
	if err != nil {
		return helper.NewError("init relationship edges", err)
	}

	h.db.Logger.Info("Checked/created table relationship_edges")

	return nil
}

// UpsertRelationshipEdge inserts the edge or overwrites the existing edge of the same
// ordered pair if the stored one was not detected later. The edge is updated with the stored row.
func (h *RelationshipsDBHandler) UpsertRelationshipEdge(ctx context.Context, edge *model.RelationshipEdge) error {
	if edge.SourceID == edge.TargetID {
		return helper.NewError("upsert relationship edge", fmt.Errorf("self loop on %s", edge.SourceID))
	}

	var detectedAt *time.Time
	if !edge.DetectedAt.IsZero() {
		detectedAt = &edge.DetectedAt
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_relationship_edge($1, $2, $3, $4, $5)`,
		edge.SourceID,
		edge.TargetID,
		clamp01(edge.SimilarityScore),
		string(edge.RelationshipType),
		detectedAt,
	)

	err := scanRelationshipEdge(row, edge)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationshipEdge retrieves the edge of an ordered pair.
func (h *RelationshipsDBHandler) SelectRelationshipEdge(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) (*model.RelationshipEdge, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_relationship_edge($1, $2)`,
		sourceID,
		targetID,
	)

	edge := &model.RelationshipEdge{}
	err := scanRelationshipEdge(row, edge)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return edge, nil
}

// SelectEdgesFromConversation retrieves outgoing edges, optionally of one type.
func (h *RelationshipsDBHandler) SelectEdgesFromConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return h.selectEdges(ctx, `SELECT * FROM select_edges_from_conversation($1, $2)`, id, relationshipType)
}

// SelectEdgesToConversation retrieves incoming edges, optionally of one type.
func (h *RelationshipsDBHandler) SelectEdgesToConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return h.selectEdges(ctx, `SELECT * FROM select_edges_to_conversation($1, $2)`, id, relationshipType)
}

func (h *RelationshipsDBHandler) selectEdges(ctx context.Context, query string, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	var typeParam *string
	if relationshipType != nil {
		t := string(*relationshipType)
		typeParam = &t
	}

	rows, err := h.db.Instance.QueryContext(ctx, query, id, typeParam)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.RelationshipEdge
	for rows.Next() {
		edge := &model.RelationshipEdge{}
		err := scanRelationshipEdge(rows, edge)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// SelectRelationshipTypeCounts returns the number of edges per relationship type.
func (h *RelationshipsDBHandler) SelectRelationshipTypeCounts(ctx context.Context) (map[model.RelationshipType]int, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_relationship_type_counts()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	counts := map[model.RelationshipType]int{}
	for rows.Next() {
		var relationshipType string
		var count int
		err := rows.Scan(&relationshipType, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		counts[model.RelationshipType(relationshipType)] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return counts, nil
}

// SelectConversationsPendingRelationships returns up to limit ids of conversations that
// have an embedding and were never processed by a relationship build. Edges written by
// a neighbor's build do not count as processed.
func (h *RelationshipsDBHandler) SelectConversationsPendingRelationships(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_conversations_pending_relationships($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		err := rows.Scan(&id)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

// DeleteRelationshipEdge deletes the edge of an ordered pair.
func (h *RelationshipsDBHandler) DeleteRelationshipEdge(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID) error {
	var found bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_relationship_edge($1, $2)`,
		sourceID,
		targetID,
	).Scan(&found)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if !found {
		return helper.NewError("delete relationship edge", sql.ErrNoRows)
	}
	return nil
}

func scanRelationshipEdge(row rowScanner, edge *model.RelationshipEdge) error {
	var relationshipType string
	err := row.Scan(
		&edge.SourceID,
		&edge.TargetID,
		&edge.SimilarityScore,
		&relationshipType,
		&edge.DetectedAt,
	)
	if err != nil {
		return err
	}
	edge.RelationshipType = model.RelationshipType(relationshipType)
	return nil
}

// IsNotFound reports whether err means a missing row or conversation.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, model.ErrConversationNotFound)
}
