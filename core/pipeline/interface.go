package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/convograph/model"
)

// EmbedFunc generates an embedding for text.
// It may be slow and may fail; implementations should honor ctx.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// TopicFunc extracts topics from a single text.
// It must not depend on other documents.
type TopicFunc func(text string) ([]string, error)

// Pipeline enriches conversations before they are stored.
type Pipeline struct {
	Embedder       EmbedFunc // Optional
	TopicExtractor TopicFunc // Optional
}

// NewPipeline creates a new conversation pipeline
func NewPipeline(embedder EmbedFunc, topicExtractor TopicFunc) *Pipeline {
	return &Pipeline{
		Embedder:       embedder,
		TopicExtractor: topicExtractor,
	}
}

// Process fills in topics and embedding of a conversation if they are
// missing and the corresponding function is set.
// A topic extraction failure leaves the topics empty, an embedding failure
// is returned wrapped in model.ErrEmbeddingFailure.
func (p *Pipeline) Process(ctx context.Context, conversation *model.Conversation) error {
	if p.TopicExtractor != nil && len(conversation.Topics) == 0 {
		topics, err := p.TopicExtractor(conversation.EmbeddingText())
		if err == nil {
			conversation.Topics = topics
		}
	}

	if p.Embedder != nil && len(conversation.Embedding) == 0 {
		embedding, err := p.Embedder(ctx, conversation.EmbeddingText())
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrEmbeddingFailure, err)
		}
		conversation.Embedding = embedding
	}

	return nil
}
