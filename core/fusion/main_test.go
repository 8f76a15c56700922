package fusion

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeLexical ignores its context on purpose, so timeouts have to be enforced by the engine.
type fakeLexical struct {
	hits      []*model.SearchHit
	err       error
	delay     time.Duration
	calls     atomic.Int32
	lastLimit atomic.Int32
}

func (f *fakeLexical) LexicalSearch(ctx context.Context, query string, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	f.calls.Add(1)
	f.lastLimit.Store(int32(limit))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.hits, f.err
}

type fakeVector struct {
	hits      []*model.SearchHit
	err       error
	delay     time.Duration
	calls     atomic.Int32
	lastLimit atomic.Int32
}

func (f *fakeVector) VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	f.calls.Add(1)
	f.lastLimit.Store(int32(limit))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.hits, f.err
}

func fakeEmbed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func failingEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func hit(id uuid.UUID, score float64, source model.Source, age time.Duration) *model.SearchHit {
	return &model.SearchHit{RecordID: id, RawScore: score, Source: source, RecordedAt: baseTime.Add(-age)}
}

func testConfig() model.FusionConfig {
	config := model.DefaultFusionConfig()
	config.LexicalTimeout = time.Second
	config.VectorTimeout = time.Second
	return config
}
