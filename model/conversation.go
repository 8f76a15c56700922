package model

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a stored prompt/response exchange from one AI platform.
type Conversation struct {
	ID                   uuid.UUID  `json:"id"`
	Platform             string     `json:"platform"`
	Project              *string    `json:"project,omitempty"`
	Title                string     `json:"title"`
	PrimaryUserText      *string    `json:"primary_user_text,omitempty"`
	Content              string     `json:"content"`
	Topics               []string   `json:"topics"`
	Metadata             Metadata   `json:"metadata,omitempty"`
	Embedding            []float32  `json:"embedding,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CreatedAt            time.Time  `json:"created_at"`
	RelationshipsBuiltAt *time.Time `json:"relationships_built_at,omitempty"`
}

// ConversationSummary carries the fields relationship classification looks at.
type ConversationSummary struct {
	ID              uuid.UUID `json:"id"`
	Project         *string   `json:"project,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Topics          []string  `json:"topics"`
	PrimaryUserText *string   `json:"primary_user_text,omitempty"`
}

// Summary returns the classification view of the conversation.
func (c *Conversation) Summary() *ConversationSummary {
	return &ConversationSummary{
		ID:              c.ID,
		Project:         c.Project,
		StartedAt:       c.StartedAt,
		Topics:          c.Topics,
		PrimaryUserText: c.PrimaryUserText,
	}
}

// EmbeddingText is the text an embedding is computed from.
func (c *Conversation) EmbeddingText() string {
	if c.PrimaryUserText != nil && *c.PrimaryUserText != "" {
		if c.Title != "" {
			return c.Title + "\n" + *c.PrimaryUserText
		}
		return *c.PrimaryUserText
	}
	if c.Title != "" {
		return c.Title + "\n" + c.Content
	}
	return c.Content
}
