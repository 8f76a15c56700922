package fusion

import (
	"context"
	"fmt"

	"github.com/siherrmann/convograph/model"
)

// Strategy defines a retrieval strategy
type Strategy interface {
	Retrieve(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error)
}

const (
	StrategyHybrid  = "hybrid"
	StrategyLexical = "lexical"
	StrategyVector  = "vector"
)

// HybridStrategy fuses lexical and vector search
type HybridStrategy struct {
	engine *Engine
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{engine: engine}
}

// Retrieve performs hybrid retrieval
func (s *HybridStrategy) Retrieve(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	return s.engine.Fuse(ctx, query, filters, limit)
}

// LexicalOnlyStrategy ranks by the full-text index alone
type LexicalOnlyStrategy struct {
	engine *Engine
}

// NewLexicalOnlyStrategy creates a new lexical-only strategy
func NewLexicalOnlyStrategy(engine *Engine) *LexicalOnlyStrategy {
	return &LexicalOnlyStrategy{engine: engine}
}

// Retrieve performs lexical-only retrieval
func (s *LexicalOnlyStrategy) Retrieve(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	return s.engine.search(ctx, query, filters, limit, []model.Source{model.SourceLexical})
}

// VectorOnlyStrategy ranks by embedding similarity alone
type VectorOnlyStrategy struct {
	engine *Engine
}

// NewVectorOnlyStrategy creates a new vector-only strategy
func NewVectorOnlyStrategy(engine *Engine) *VectorOnlyStrategy {
	return &VectorOnlyStrategy{engine: engine}
}

// Retrieve performs vector-only retrieval
func (s *VectorOnlyStrategy) Retrieve(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	return s.engine.search(ctx, query, filters, limit, []model.Source{model.SourceVector})
}

// NewStrategy returns the strategy registered under name.
// An empty name selects the hybrid strategy.
func NewStrategy(engine *Engine, name string) (Strategy, error) {
	switch name {
	case "", StrategyHybrid:
		return NewHybridStrategy(engine), nil
	case StrategyLexical:
		return NewLexicalOnlyStrategy(engine), nil
	case StrategyVector:
		return NewVectorOnlyStrategy(engine), nil
	}
	return nil, fmt.Errorf("%w: unknown search mode %q", model.ErrInvalidQuery, name)
}
