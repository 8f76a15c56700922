package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationshipType labels how two conversations relate.
type RelationshipType string

const (
	RelationshipNearDuplicate     RelationshipType = "near_duplicate"
	RelationshipBuildsOn          RelationshipType = "builds_on"
	RelationshipSolvesSameProblem RelationshipType = "solves_same_problem"
	RelationshipReferences        RelationshipType = "references"
	RelationshipContradicts       RelationshipType = "contradicts"
	RelationshipRelated           RelationshipType = "related"
)

// RelationshipTypes lists all relationship types in classification priority order.
var RelationshipTypes = []RelationshipType{
	RelationshipNearDuplicate,
	RelationshipBuildsOn,
	RelationshipSolvesSameProblem,
	RelationshipContradicts,
	RelationshipReferences,
	RelationshipRelated,
}

// ParseRelationshipType validates s against the known relationship types.
func ParseRelationshipType(s string) (RelationshipType, error) {
	for _, t := range RelationshipTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown relationship type %q", s)
}

// RelationshipEdge is a directed, typed edge between two conversations.
// There is at most one edge per (SourceID, TargetID).
type RelationshipEdge struct {
	SourceID         uuid.UUID        `json:"source_id"`
	TargetID         uuid.UUID        `json:"target_id"`
	SimilarityScore  float64          `json:"similarity_score"`
	RelationshipType RelationshipType `json:"relationship_type"`
	DetectedAt       time.Time        `json:"detected_at"`
}

// BatchSummary reports the outcome of a batch relationship build.
// Every selected conversation is counted in exactly one of
// Success, Failed, Skipped or Remaining.
type BatchSummary struct {
	Success      int                  `json:"success"`
	Failed       int                  `json:"failed"`
	Skipped      int                  `json:"skipped"`
	Remaining    int                  `json:"remaining"`
	EdgesCreated int                  `json:"edges_created"`
	Failures     map[uuid.UUID]string `json:"failures,omitempty"`
	Cancelled    bool                 `json:"cancelled"`
}

// Total returns the number of conversations the batch selected.
func (s *BatchSummary) Total() int {
	return s.Success + s.Failed + s.Skipped + s.Remaining
}
