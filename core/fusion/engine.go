package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/siherrmann/convograph/core/pipeline"
	"github.com/siherrmann/convograph/helper"
	"github.com/siherrmann/convograph/model"
	"golang.org/x/sync/errgroup"
)

// LexicalSearcher is a keyword/full-text index.
type LexicalSearcher interface {
	LexicalSearch(ctx context.Context, query string, filters model.Filters, limit int) ([]*model.SearchHit, error)
}

// VectorSearcher is a nearest neighbor index over conversation embeddings.
// Scores are cosine similarities, FuseRRF clamps them into [0,1].
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error)
}

// Engine runs lexical and vector search side by side and fuses the rankings.
type Engine struct {
	lexical LexicalSearcher
	vector  VectorSearcher
	config  model.FusionConfig
	log     *slog.Logger

	mu    sync.RWMutex
	embed pipeline.EmbedFunc
}

// NewEngine creates a new fusion engine. Without an embedder the vector
// source is omitted from every search.
func NewEngine(lexical LexicalSearcher, vector VectorSearcher, embed pipeline.EmbedFunc, config model.FusionConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = helper.DiscardLogger()
	}
	return &Engine{
		lexical: lexical,
		vector:  vector,
		config:  config,
		log:     logger,
		embed:   embed,
	}
}

// SetEmbedder replaces the query embedder.
func (e *Engine) SetEmbedder(embed pipeline.EmbedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embed = embed
}

// Config returns the fusion configuration.
func (e *Engine) Config() model.FusionConfig {
	return e.config
}

// Fuse runs both sub-searches concurrently and returns the fused ranking.
// If one source fails or times out the other one is ranked alone and the
// response is marked partial. If both fail ErrSearchUnavailable is returned.
func (e *Engine) Fuse(ctx context.Context, query string, filters model.Filters, limit int) (*model.SearchResponse, error) {
	return e.search(ctx, query, filters, limit, Sources)
}

func (e *Engine) search(ctx context.Context, query string, filters model.Filters, limit int, sources []model.Source) (*model.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, helper.NewError("fuse", fmt.Errorf("%w: empty query", model.ErrInvalidQuery))
	}
	if limit <= 0 {
		return nil, helper.NewError("fuse", fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidQuery, limit))
	}

	fetch := limit * max(e.config.OverFetch, 1)
	hits := make([][]*model.SearchHit, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	for i, source := range sources {
		g.Go(func() error {
			hits[i], errs[i] = e.searchSource(ctx, source, query, filters, fetch)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response := &model.SearchResponse{Omitted: map[model.Source]string{}}
	lists := map[model.Source][]*model.SearchHit{}
	var failures []error
	for i, source := range sources {
		if errs[i] != nil {
			e.log.Warn("Omitting search source", "source", source, "error", errs[i])
			response.Omitted[source] = errs[i].Error()
			failures = append(failures, fmt.Errorf("%s: %w", source, errs[i]))
			continue
		}
		lists[source] = hits[i]
	}

	if len(failures) == len(sources) {
		return nil, helper.NewError("fuse", errors.Join(append([]error{model.ErrSearchUnavailable}, failures...)...))
	}

	response.Partial = len(failures) > 0
	response.Results = FuseRRF(e.config, lists, limit)

	e.log.Debug("Fused search results", "query", query, "results", len(response.Results), "partial", response.Partial)

	return response, nil
}

func (e *Engine) searchSource(ctx context.Context, source model.Source, query string, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	switch source {
	case model.SourceLexical:
		if e.lexical == nil {
			return nil, errors.New("lexical index not configured")
		}
		return withTimeout(ctx, e.config.LexicalTimeout, func(ctx context.Context) ([]*model.SearchHit, error) {
			return e.lexical.LexicalSearch(ctx, query, filters, limit)
		})
	case model.SourceVector:
		e.mu.RLock()
		embed := e.embed
		e.mu.RUnlock()
		if e.vector == nil {
			return nil, errors.New("vector store not configured")
		}
		if embed == nil {
			return nil, fmt.Errorf("%w: no embedder configured", model.ErrEmbeddingFailure)
		}
		// Embedding and search share one deadline.
		return withTimeout(ctx, e.config.VectorTimeout, func(ctx context.Context) ([]*model.SearchHit, error) {
			vector, err := embed(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", model.ErrEmbeddingFailure, err)
			}
			if len(vector) == 0 {
				return nil, fmt.Errorf("%w: empty embedding", model.ErrEmbeddingFailure)
			}
			return e.vector.VectorSearch(ctx, vector, filters, limit)
		})
	}
	return nil, fmt.Errorf("unknown source %q", source)
}

// withTimeout runs fn under its own deadline. The deadline holds even if fn
// ignores its context; the goroutine is left to finish on its own.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(timeoutCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %w", model.ErrSubSearchTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", model.ErrSubSearchTimeout, timeout)
	}
}
