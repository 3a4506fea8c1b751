package similarity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func orgVector(id uuid.UUID, funding float64, categories ...string) *Vector {
	v := &Vector{
		EntityUUID: id,
		Kind:       models.RecordTypeOrganization,
		Numeric:    map[string]float64{"total_funding_usd": funding},
		TokenSets:  map[string][]string{},
	}
	if len(categories) > 0 {
		v.TokenSets["categories"] = categories
	}
	return v
}

func TestComputeStats(t *testing.T) {
	vectors := []*Vector{
		orgVector(uuid.New(), 100),
		orgVector(uuid.New(), 500),
		orgVector(uuid.New(), 300),
	}

	stats := ComputeStats(vectors)

	assert.Equal(t, 100.0, stats.Min["total_funding_usd"])
	assert.Equal(t, 500.0, stats.Max["total_funding_usd"])
	assert.InDelta(t, 0.5, stats.Normalize("total_funding_usd", 300), 0.0001)
}

func TestCorpusStats_Normalize_Degenerate(t *testing.T) {
	stats := ComputeStats([]*Vector{orgVector(uuid.New(), 100), orgVector(uuid.New(), 100)})

	assert.Equal(t, 0.0, stats.Normalize("total_funding_usd", 100))
	assert.Equal(t, 0.0, stats.Normalize("unknown_field", 42))
}

func TestEngine_Score_IdenticalVectors(t *testing.T) {
	e := NewEngine(nil)

	a := orgVector(uuid.New(), 400, "fintech", "saas")
	b := orgVector(uuid.New(), 400, "fintech", "saas")
	stats := ComputeStats([]*Vector{a, b, orgVector(uuid.New(), 100)})

	score, factors := e.Score(a, b, stats, nil)

	assert.InDelta(t, 1.0, score, 0.0001)
	require.NotEmpty(t, factors)
}

func TestEngine_Score_DifferentKindsNotComparable(t *testing.T) {
	e := NewEngine(nil)

	a := orgVector(uuid.New(), 400)
	b := &Vector{EntityUUID: uuid.New(), Kind: models.RecordTypePerson, Numeric: map[string]float64{"exits_count": 1}}

	score, factors := e.Score(a, b, ComputeStats([]*Vector{a, b}), nil)
	assert.Zero(t, score)
	assert.Empty(t, factors)
}

func TestEngine_Score_WeightOverride(t *testing.T) {
	e := NewEngine(nil)

	a := orgVector(uuid.New(), 500, "fintech")
	b := orgVector(uuid.New(), 100, "fintech")
	stats := ComputeStats([]*Vector{a, b})

	// All weight on category overlap: the funding gap stops mattering.
	score, _ := e.Score(a, b, stats, models.SimilarityWeights{NumericWeightKey: 0, "categories": 1})
	assert.InDelta(t, 1.0, score, 0.0001)
}

func TestEngine_TopK_DeterministicOrdering(t *testing.T) {
	e := NewEngine(nil)

	target := orgVector(uuid.New(), 300, "fintech")
	twinA := orgVector(uuid.MustParse("00000000-0000-0000-0000-000000000002"), 300, "fintech")
	twinB := orgVector(uuid.MustParse("00000000-0000-0000-0000-000000000001"), 300, "fintech")
	far := orgVector(uuid.New(), 900, "biotech")

	corpus := []*Vector{target, twinA, twinB, far}
	stats := ComputeStats(corpus)

	results := e.TopK(target, corpus, stats, 2, nil)

	require.Len(t, results, 2)
	// Equal scores break ties by uuid ascending.
	assert.Equal(t, twinB.EntityUUID, results[0].EntityUUID)
	assert.Equal(t, twinA.EntityUUID, results[1].EntityUUID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestEngine_TopK_ExcludesSelfAndOtherKinds(t *testing.T) {
	e := NewEngine(nil)

	target := orgVector(uuid.New(), 300, "fintech")
	person := &Vector{
		EntityUUID: uuid.New(),
		Kind:       models.RecordTypePerson,
		Numeric:    map[string]float64{"exits_count": 1},
	}
	other := orgVector(uuid.New(), 320, "fintech")

	corpus := []*Vector{target, person, other}
	results := e.TopK(target, corpus, ComputeStats(corpus), 10, nil)

	require.Len(t, results, 1)
	assert.Equal(t, other.EntityUUID, results[0].EntityUUID)
}

func TestEngine_TopFactors(t *testing.T) {
	e := NewEngine(nil)

	a := orgVector(uuid.New(), 300, "fintech", "saas")
	b := orgVector(uuid.New(), 305, "fintech", "saas")
	stats := ComputeStats([]*Vector{a, b, orgVector(uuid.New(), 0)})

	_, factors := e.Score(a, b, stats, nil)

	require.NotEmpty(t, factors)
	assert.LessOrEqual(t, len(factors), 3)
	for i := 1; i < len(factors); i++ {
		assert.GreaterOrEqual(t, factors[i-1].Contribution, factors[i].Contribution)
	}
}

func TestOrganizationVector(t *testing.T) {
	funding := 1_000_000.0
	band := "101-250"
	founded := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	org := &models.Organization{
		UUID:            uuid.New(),
		TotalFundingUSD: &funding,
		EmployeeCount:   &band,
		FoundedOn:       &founded,
		Categories:      []string{"fintech"},
	}

	v := OrganizationVector(org, now)

	assert.Equal(t, 1_000_000.0, v.Numeric["total_funding_usd"])
	assert.Equal(t, 175.5, v.Numeric["employee_count"])
	assert.InDelta(t, 366, v.Numeric["lifespan_days"], 1)
	assert.Equal(t, []string{"fintech"}, v.TokenSets["categories"])
}

func TestPersonVector(t *testing.T) {
	lifespan := 1200.0
	features := &models.FounderFeatures{
		PersonUUID:             uuid.New(),
		TotalCompaniesFounded:  2,
		TotalFundingRaised:     5_000_000,
		ExitsCount:             1,
		AvgCompanyLifespanDays: &lifespan,
		CompanyCategories:      []string{"fintech"},
		JobTitles:              []string{"founder"},
	}

	v := PersonVector(features)

	assert.Equal(t, models.RecordTypePerson, v.Kind)
	assert.Equal(t, 2.0, v.Numeric["total_companies_founded"])
	assert.Equal(t, 1200.0, v.Numeric["avg_company_lifespan_days"])
	assert.Equal(t, []string{"founder"}, v.TokenSets["job_titles"])
}
