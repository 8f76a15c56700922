package model

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the retrieval backend that produced a hit.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
)

// SearchHit is a single candidate returned by one retrieval backend.
type SearchHit struct {
	RecordID   uuid.UUID `json:"record_id"`
	RawScore   float64   `json:"raw_score"`
	Source     Source    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FusedResult is one entry of the combined ranking.
type FusedResult struct {
	RecordID            uuid.UUID          `json:"record_id"`
	FusedScore          float64            `json:"fused_score"`
	ContributingSources []Source           `json:"contributing_sources"`
	Ranks               map[Source]int     `json:"ranks"`
	RawScores           map[Source]float64 `json:"raw_scores"`
	NormalizedScores    map[Source]float64 `json:"normalized_scores"`
	RecordedAt          time.Time          `json:"recorded_at"`
}

// HasSource reports whether source contributed to the result.
func (r *FusedResult) HasSource(source Source) bool {
	for _, s := range r.ContributingSources {
		if s == source {
			return true
		}
	}
	return false
}

// SearchResponse is the outcome of a hybrid search.
// Partial is set when one backend was omitted, Omitted names the reason per backend.
type SearchResponse struct {
	Results []*FusedResult    `json:"results"`
	Partial bool              `json:"partial"`
	Omitted map[Source]string `json:"omitted,omitempty"`
}

// IDs returns the record ids in ranking order.
func (r *SearchResponse) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Results))
	for _, res := range r.Results {
		ids = append(ids, res.RecordID)
	}
	return ids
}
