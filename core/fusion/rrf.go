package fusion

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/convograph/model"
)

// scoreEpsilon is the tolerance under which two fused scores count as tied.
const scoreEpsilon = 1e-12

// Sources lists the retrieval backends in the order they are reported.
var Sources = []model.Source{model.SourceLexical, model.SourceVector}

// NormalizeScores min-max normalizes the raw scores of one source into [0,1].
// A single hit or hits without variance all normalize to 1.
func NormalizeScores(hits []*model.SearchHit) []float64 {
	normalized := make([]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}

	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, hit := range hits {
		minScore = math.Min(minScore, hit.RawScore)
		maxScore = math.Max(maxScore, hit.RawScore)
	}

	spread := maxScore - minScore
	for i, hit := range hits {
		if spread <= 0 {
			normalized[i] = 1
			continue
		}
		normalized[i] = (hit.RawScore - minScore) / spread
	}
	return normalized
}

// FuseRRF combines the per source hit lists with weighted reciprocal rank fusion.
// Each list is ranked by raw score (stable, so equal scores keep the backend order)
// and every hit contributes weight/(K+rank) with 1-indexed ranks. A record listed
// twice by one source only counts with its best rank. Raw scores are clamped
// first: vector scores into [0,1], lexical scores to >= 0.
// The result is sorted by fused score, then recency, then id and cut to limit.
// A limit <= 0 returns all fused records.
func FuseRRF(config model.FusionConfig, lists map[model.Source][]*model.SearchHit, limit int) []*model.FusedResult {
	k := config.K
	if k <= 0 {
		k = 60
	}

	fused := map[uuid.UUID]*model.FusedResult{}
	for _, source := range Sources {
		hits := rankHits(source, lists[source])
		normalized := NormalizeScores(hits)
		weight := config.Weight(source)

		for i, hit := range hits {
			result, ok := fused[hit.RecordID]
			if !ok {
				result = &model.FusedResult{
					RecordID:         hit.RecordID,
					Ranks:            map[model.Source]int{},
					RawScores:        map[model.Source]float64{},
					NormalizedScores: map[model.Source]float64{},
					RecordedAt:       hit.RecordedAt,
				}
				fused[hit.RecordID] = result
			}
			if _, seen := result.Ranks[source]; seen {
				continue
			}

			rank := i + 1
			result.Ranks[source] = rank
			result.RawScores[source] = hit.RawScore
			result.NormalizedScores[source] = normalized[i]
			result.FusedScore += weight / float64(k+rank)
			result.ContributingSources = append(result.ContributingSources, source)
			if hit.RecordedAt.After(result.RecordedAt) {
				result.RecordedAt = hit.RecordedAt
			}
		}
	}

	results := make([]*model.FusedResult, 0, len(fused))
	for _, result := range fused {
		results = append(results, result)
	}
	SortResults(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SortResults orders fused results by score desc, recency desc and id asc.
func SortResults(results []*model.FusedResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if diff := a.FusedScore - b.FusedScore; math.Abs(diff) > scoreEpsilon {
			return diff > 0
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.After(b.RecordedAt)
		}
		return a.RecordID.String() < b.RecordID.String()
	})
}

// rankHits returns a copy of hits ordered by clamped raw score desc without nil entries.
// Hits whose score is out of range are copied, the caller's hits are not modified.
func rankHits(source model.Source, hits []*model.SearchHit) []*model.SearchHit {
	ranked := make([]*model.SearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit == nil {
			continue
		}
		if score := clampScore(source, hit.RawScore); score != hit.RawScore {
			clamped := *hit
			clamped.RawScore = score
			hit = &clamped
		}
		ranked = append(ranked, hit)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RawScore > ranked[j].RawScore
	})
	return ranked
}

// clampScore keeps raw scores in the range of their source.
func clampScore(source model.Source, score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if source == model.SourceVector && score > 1 {
		return 1
	}
	return score
}
