package model

import (
	"time"

	"github.com/google/uuid"
)

// Filters restrict both lexical and vector search.
// Empty fields do not filter.
type Filters struct {
	Project  string     `json:"project,omitempty"`
	Platform string     `json:"platform,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`

	// Vector store only.
	MinSimilarity float64     `json:"min_similarity,omitempty"`
	ExcludeIDs    []uuid.UUID `json:"exclude_ids,omitempty"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProjectParam returns the project filter or nil.
func (f Filters) ProjectParam() *string {
	return nullableString(f.Project)
}

// PlatformParam returns the platform filter or nil.
func (f Filters) PlatformParam() *string {
	return nullableString(f.Platform)
}
