// Package matching scores candidate record pairs with weighted field
// comparators. Scoring is stateless and deterministic: the same pair always
// yields the same score and field breakdown.
package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultThreshold is the acceptance cutoff for a candidate pair.
const DefaultThreshold = 0.8

type fieldComparator struct {
	field  string
	weight float64
	kind   comparatorKind
}

type comparatorKind int

const (
	compareExact comparatorKind = iota
	compareName
	compareTokens
)

// Exact-key fields carry full weight, fuzzy names less, categorical
// overlap less again. A field is scored only when both records carry it.
var comparators = map[models.RecordType][]fieldComparator{
	models.RecordTypeOrganization: {
		{field: "domain", weight: 1.0, kind: compareExact},
		{field: "homepage_url", weight: 1.0, kind: compareExact},
		{field: "name", weight: 0.5, kind: compareName},
		{field: "categories", weight: 0.3, kind: compareTokens},
		{field: "country_code", weight: 0.2, kind: compareExact},
	},
	models.RecordTypePerson: {
		{field: "linkedin_url", weight: 1.0, kind: compareExact},
		{field: "full_name", weight: 0.5, kind: compareName},
		{field: "country_code", weight: 0.2, kind: compareExact},
		{field: "region", weight: 0.2, kind: compareExact},
	},
	models.RecordTypeJob: {
		{field: "person_record_id", weight: 1.0, kind: compareExact},
		{field: "org_record_id", weight: 0.5, kind: compareExact},
		{field: "title", weight: 0.5, kind: compareName},
		{field: "job_type", weight: 0.2, kind: compareExact},
	},
}

// Matcher scores normalized record pairs against an acceptance threshold.
type Matcher struct {
	scorer    *Scorer
	threshold float64
	trust     map[string]int
}

// New builds a Matcher. priorities define source trust for equal-score
// tie-breaking; higher values win.
func New(threshold float64, priorities []models.SourcePriority) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	trust := make(map[string]int, len(priorities))
	for _, p := range priorities {
		trust[p.Source] = p.Priority
	}
	return &Matcher{scorer: NewScorer(), threshold: threshold, trust: trust}
}

// TrustPriority returns the configured trust level of a source. Unknown
// sources rank lowest.
func (m *Matcher) TrustPriority(source string) int {
	return m.trust[source]
}

// Score compares two normalized records of the same type. The returned
// field scores name every comparator that contributed. ok is false when
// the pair is below threshold or not comparable.
func (m *Matcher) Score(a, b *models.NormalizedRecord) (models.MatchScore, bool) {
	if a == nil || b == nil || a.RecordType != b.RecordType {
		return models.MatchScore{}, false
	}

	fieldScores := map[string]float64{}
	weights := map[string]float64{}

	for _, cmp := range comparators[a.RecordType] {
		score, scored := m.compareField(cmp, a, b)
		if !scored {
			continue
		}
		fieldScores[cmp.field] = score
		weights[cmp.field] = cmp.weight
	}

	if len(fieldScores) == 0 {
		return models.MatchScore{}, false
	}

	total := m.scorer.WeightedScore(fieldScores, weights)
	if total < m.threshold {
		return models.MatchScore{}, false
	}

	return models.MatchScore{Score: total, FieldScores: fieldScores}, true
}

func (m *Matcher) compareField(cmp fieldComparator, a, b *models.NormalizedRecord) (float64, bool) {
	switch cmp.kind {
	case compareTokens:
		ta, tb := a.Tokens(cmp.field), b.Tokens(cmp.field)
		if len(ta) == 0 || len(tb) == 0 {
			return 0, false
		}
		return m.scorer.TokenJaccard(ta, tb), true
	case compareName:
		va, vb := a.String(cmp.field), b.String(cmp.field)
		if va == "" || vb == "" {
			return 0, false
		}
		return m.scorer.NameSimilarity(va, vb), true
	default:
		va, vb := a.String(cmp.field), b.String(cmp.field)
		if va == "" || vb == "" {
			return 0, false
		}
		return m.scorer.ExactMatch(va, vb), true
	}
}

// ScorePairs scores every candidate pair and returns the accepted matches
// ordered by score descending. Equal scores prefer the pair whose sources
// carry higher trust priority, then lower record indexes, so ordering is
// reproducible across runs.
func (m *Matcher) ScorePairs(records []*models.NormalizedRecord, pairs []models.CandidatePair) []models.MatchScore {
	var accepted []models.MatchScore
	for _, pair := range pairs {
		score, ok := m.Score(records[pair.A], records[pair.B])
		if !ok {
			continue
		}
		score.Pair = pair
		accepted = append(accepted, score)
	}

	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].Score != accepted[j].Score {
			return accepted[i].Score > accepted[j].Score
		}
		ti := m.pairTrust(records, accepted[i].Pair)
		tj := m.pairTrust(records, accepted[j].Pair)
		if ti != tj {
			return ti > tj
		}
		if accepted[i].Pair.A != accepted[j].Pair.A {
			return accepted[i].Pair.A < accepted[j].Pair.A
		}
		return accepted[i].Pair.B < accepted[j].Pair.B
	})
	return accepted
}

func (m *Matcher) pairTrust(records []*models.NormalizedRecord, pair models.CandidatePair) int {
	ta := m.TrustPriority(records[pair.A].Source)
	tb := m.TrustPriority(records[pair.B].Source)
	if tb > ta {
		return tb
	}
	return ta
}
