// Package similarity scores feature vectors pairwise and answers ranked
// top-K queries with per-factor explanations. What "similar" means shifts
// by evaluator, so component weights are configuration and can be
// overridden per query.
package similarity

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// NumericWeightKey is the weight entry covering the cosine over all
// numeric fields; every other weight entry names a token-set field.
const NumericWeightKey = "numeric"

// DefaultWeights splits the score evenly between the numeric cosine and
// categorical overlap.
var DefaultWeights = models.SimilarityWeights{
	NumericWeightKey:     0.5,
	"categories":         0.5,
	"company_categories": 0.3,
	"job_titles":         0.2,
}

const topFactorCount = 3

// Engine computes pairwise similarity against explicit corpus bounds.
type Engine struct {
	weights models.SimilarityWeights
}

func NewEngine(weights models.SimilarityWeights) *Engine {
	if len(weights) == 0 {
		weights = DefaultWeights
	}
	return &Engine{weights: weights}
}

// Score computes the weighted similarity of two vectors of the same kind:
// cosine over min-max normalized numeric fields plus Jaccard per token
// set, normalized by the total weight of the components present. The
// factor breakdown carries each component's share for explanations.
func (e *Engine) Score(a, b *Vector, stats *CorpusStats, override models.SimilarityWeights) (float64, []models.FactorContribution) {
	if a == nil || b == nil || a.Kind != b.Kind {
		return 0, nil
	}

	weights := e.weights
	if len(override) > 0 {
		weights = override
	}

	var weightedSum, totalWeight float64
	var factors []models.FactorContribution

	if sim, ok := e.cosine(a, b, stats); ok {
		weight := weightOf(weights, NumericWeightKey)
		weightedSum += weight * sim
		totalWeight += weight
		factors = append(factors, numericFactors(a, b, stats, weight)...)
	}

	for _, field := range tokenFields(a, b) {
		ta, tb := a.TokenSets[field], b.TokenSets[field]
		if len(ta) == 0 || len(tb) == 0 {
			continue
		}
		sim := jaccard(ta, tb)
		weight := weightOf(weights, field)
		weightedSum += weight * sim
		totalWeight += weight
		factors = append(factors, models.FactorContribution{Factor: field, Contribution: weight * sim})
	}

	if totalWeight == 0 {
		return 0, nil
	}

	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Contribution != factors[j].Contribution {
			return factors[i].Contribution > factors[j].Contribution
		}
		return factors[i].Factor < factors[j].Factor
	})
	if len(factors) > topFactorCount {
		factors = factors[:topFactorCount]
	}

	return weightedSum / totalWeight, factors
}

// TopK returns the k highest-scoring same-kind entities for the target,
// score descending with ties broken by uuid ascending, self excluded.
func (e *Engine) TopK(
	target *Vector,
	corpus []*Vector,
	stats *CorpusStats,
	k int,
	override models.SimilarityWeights,
) []models.SimilarEntity {
	if target == nil || k <= 0 {
		return nil
	}

	var results []models.SimilarEntity
	for _, candidate := range corpus {
		if candidate == nil || candidate.EntityUUID == target.EntityUUID || candidate.Kind != target.Kind {
			continue
		}
		score, factors := e.Score(target, candidate, stats, override)
		if len(factors) == 0 {
			continue
		}
		results = append(results, models.SimilarEntity{
			EntityUUID: candidate.EntityUUID,
			Score:      score,
			TopFactors: factors,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return lessUUID(results[i].EntityUUID, results[j].EntityUUID)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// cosine computes cosine similarity over the union of both vectors'
// numeric fields, each min-max normalized. ok is false when neither
// vector carries a numeric field.
func (e *Engine) cosine(a, b *Vector, stats *CorpusStats) (float64, bool) {
	fields := map[string]struct{}{}
	for field := range a.Numeric {
		fields[field] = struct{}{}
	}
	for field := range b.Numeric {
		fields[field] = struct{}{}
	}
	if len(fields) == 0 {
		return 0, false
	}

	var dot, magA, magB float64
	for field := range fields {
		na := stats.Normalize(field, a.Numeric[field])
		nb := stats.Normalize(field, b.Numeric[field])
		dot += na * nb
		magA += na * na
		magB += nb * nb
	}
	if magA == 0 || magB == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), true
}

// numericFactors attributes the numeric component's weight across fields
// by per-field closeness, so explanations can name concrete fields rather
// than one opaque cosine.
func numericFactors(a, b *Vector, stats *CorpusStats, weight float64) []models.FactorContribution {
	fields := map[string]struct{}{}
	for field := range a.Numeric {
		if _, ok := b.Numeric[field]; ok {
			fields[field] = struct{}{}
		}
	}
	if len(fields) == 0 {
		return nil
	}

	share := weight / float64(len(fields))
	out := make([]models.FactorContribution, 0, len(fields))
	for field := range fields {
		closeness := 1 - math.Abs(stats.Normalize(field, a.Numeric[field])-stats.Normalize(field, b.Numeric[field]))
		out = append(out, models.FactorContribution{Factor: field, Contribution: share * closeness})
	}
	return out
}

func tokenFields(a, b *Vector) []string {
	seen := map[string]struct{}{}
	var fields []string
	for field := range a.TokenSets {
		seen[field] = struct{}{}
		fields = append(fields, field)
	}
	for field := range b.TokenSets {
		if _, ok := seen[field]; !ok {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, token := range a {
		setA[token] = struct{}{}
	}
	intersection := 0
	setB := make(map[string]struct{}, len(b))
	for _, token := range b {
		if _, dup := setB[token]; dup {
			continue
		}
		setB[token] = struct{}{}
		if _, ok := setA[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func weightOf(weights models.SimilarityWeights, key string) float64 {
	if w, ok := weights[key]; ok {
		return w
	}
	if w, ok := DefaultWeights[key]; ok {
		return w
	}
	return 0.25
}

func lessUUID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}
