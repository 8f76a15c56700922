package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type edgeKey struct {
	source uuid.UUID
	target uuid.UUID
}

// memoryStore is an in-memory stand-in for the conversations and relationship tables.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*model.Conversation
	edges         map[edgeKey]*model.RelationshipEdge
	built         map[uuid.UUID]time.Time

	// Test hooks
	ignoreExclude  bool
	vanished       map[uuid.UUID]bool
	clearAfterPick uuid.UUID
	failUpsertFor  uuid.UUID
	buildDelay     time.Duration
	builds         int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: map[uuid.UUID]*model.Conversation{},
		edges:         map[edgeKey]*model.RelationshipEdge{},
		built:         map[uuid.UUID]time.Time{},
		vanished:      map[uuid.UUID]bool{},
	}
}

func (m *memoryStore) add(project string, text string, topics []string, embedding []float32, age time.Duration) *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversation := &model.Conversation{
		ID:              uuid.New(),
		Platform:        "claude",
		Title:           text,
		PrimaryUserText: &text,
		Content:         text,
		Topics:          topics,
		Embedding:       embedding,
		StartedAt:       baseTime.Add(-age),
	}
	if project != "" {
		conversation.Project = &project
	}
	m.conversations[conversation.ID] = conversation
	return conversation
}

func (m *memoryStore) SelectEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversation, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w", model.ErrEmbeddingNotFound, model.ErrConversationNotFound)
	}
	if len(conversation.Embedding) == 0 {
		return nil, model.ErrEmbeddingNotFound
	}
	return conversation.Embedding, nil
}

func (m *memoryStore) VectorSearch(ctx context.Context, vector []float32, filters model.Filters, limit int) ([]*model.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := []*model.SearchHit{}
	for _, conversation := range m.conversations {
		if len(conversation.Embedding) == 0 {
			continue
		}
		if !m.ignoreExclude && slices.Contains(filters.ExcludeIDs, conversation.ID) {
			continue
		}
		similarity := cosine(vector, conversation.Embedding)
		if filters.MinSimilarity > 0 && similarity < filters.MinSimilarity {
			continue
		}
		hits = append(hits, &model.SearchHit{
			RecordID:   conversation.ID,
			RawScore:   similarity,
			Source:     model.SourceVector,
			RecordedAt: conversation.StartedAt,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].RawScore != hits[j].RawScore {
			return hits[i].RawScore > hits[j].RawScore
		}
		return hits[i].RecordID.String() < hits[j].RecordID.String()
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memoryStore) SelectConversationSummary(ctx context.Context, id uuid.UUID) (*model.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversation, ok := m.conversations[id]
	if !ok || m.vanished[id] {
		return nil, model.ErrConversationNotFound
	}
	return conversation.Summary(), nil
}

func (m *memoryStore) MarkRelationshipsBuilt(ctx context.Context, id uuid.UUID, builtAt time.Time) error {
	if m.buildDelay > 0 {
		time.Sleep(m.buildDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.built[id] = builtAt
	m.builds++
	return nil
}

func (m *memoryStore) UpsertRelationshipEdge(ctx context.Context, edge *model.RelationshipEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if edge.SourceID == edge.TargetID {
		return errors.New("self loop")
	}
	if edge.SourceID == m.failUpsertFor {
		return errors.New("write conflict")
	}

	key := edgeKey{edge.SourceID, edge.TargetID}
	if existing, ok := m.edges[key]; ok && existing.DetectedAt.After(edge.DetectedAt) {
		*edge = *existing
		return nil
	}
	stored := *edge
	m.edges[key] = &stored
	return nil
}

func (m *memoryStore) SelectConversationsPendingRelationships(ctx context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := []*model.Conversation{}
	for _, conversation := range m.conversations {
		if len(conversation.Embedding) == 0 {
			continue
		}
		if _, ok := m.built[conversation.ID]; ok {
			continue
		}
		pending = append(pending, conversation)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].StartedAt.Before(pending[j].StartedAt)
	})

	ids := []uuid.UUID{}
	for _, conversation := range pending {
		if len(ids) == limit {
			break
		}
		ids = append(ids, conversation.ID)
	}

	// Simulates an embedding removed between selection and processing.
	if conversation, ok := m.conversations[m.clearAfterPick]; ok {
		conversation.Embedding = nil
	}
	return ids, nil
}

func (m *memoryStore) SelectEdgesFromConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return m.selectEdges(func(key edgeKey) bool { return key.source == id }, relationshipType), nil
}

func (m *memoryStore) SelectEdgesToConversation(ctx context.Context, id uuid.UUID, relationshipType *model.RelationshipType) ([]*model.RelationshipEdge, error) {
	return m.selectEdges(func(key edgeKey) bool { return key.target == id }, relationshipType), nil
}

func (m *memoryStore) selectEdges(match func(edgeKey) bool, relationshipType *model.RelationshipType) []*model.RelationshipEdge {
	m.mu.Lock()
	defer m.mu.Unlock()

	edges := []*model.RelationshipEdge{}
	for key, edge := range m.edges {
		if !match(key) || (relationshipType != nil && edge.RelationshipType != *relationshipType) {
			continue
		}
		copied := *edge
		edges = append(edges, &copied)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SimilarityScore != edges[j].SimilarityScore {
			return edges[i].SimilarityScore > edges[j].SimilarityScore
		}
		return edges[i].TargetID.String() < edges[j].TargetID.String()
	})
	return edges
}

func (m *memoryStore) edge(source, target uuid.UUID) *model.RelationshipEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[edgeKey{source, target}]
}

func (m *memoryStore) edgeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edges)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// direction returns a unit-ish vector whose cosine similarity to [1,0] is sim.
func direction(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}
