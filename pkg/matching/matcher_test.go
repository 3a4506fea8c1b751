package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func record(source string, recordType models.RecordType, fields map[string]any) *models.NormalizedRecord {
	return &models.NormalizedRecord{
		Source:         source,
		SourceRecordID: source + "-rec",
		RecordType:     recordType,
		Fields:         fields,
	}
}

func TestMatcher_Score_OrganizationsSameDomain(t *testing.T) {
	m := New(0.8, nil)

	a := record("csv", models.RecordTypeOrganization, map[string]any{
		"name":       "acme corp",
		"domain":     "acme.io",
		"categories": []string{"fintech", "saas"},
	})
	b := record("api", models.RecordTypeOrganization, map[string]any{
		"name":       "acme corporation",
		"domain":     "acme.io",
		"categories": []string{"fintech", "saas"},
	})

	score, ok := m.Score(a, b)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score.Score, 0.8)
	assert.Equal(t, 1.0, score.FieldScores["domain"])
	assert.Equal(t, 1.0, score.FieldScores["categories"])
	assert.Greater(t, score.FieldScores["name"], 0.5)
}

func TestMatcher_Score_BelowThresholdRejected(t *testing.T) {
	m := New(0.8, nil)

	a := record("csv", models.RecordTypeOrganization, map[string]any{
		"name":   "acme corp",
		"domain": "acme.io",
	})
	b := record("api", models.RecordTypeOrganization, map[string]any{
		"name":   "zenith labs",
		"domain": "zenith.dev",
	})

	_, ok := m.Score(a, b)
	assert.False(t, ok)
}

func TestMatcher_Score_MissingFieldsExcluded(t *testing.T) {
	m := New(0.8, nil)

	// Domain present on only one side contributes nothing; the pair is
	// judged on the fields both records carry.
	a := record("csv", models.RecordTypePerson, map[string]any{
		"full_name":    "jane doe",
		"country_code": "US",
	})
	b := record("api", models.RecordTypePerson, map[string]any{
		"full_name":    "jane doe",
		"country_code": "US",
		"linkedin_url": "linkedin.com/in/janedoe",
	})

	score, ok := m.Score(a, b)
	require.True(t, ok)
	assert.NotContains(t, score.FieldScores, "linkedin_url")
	assert.Equal(t, 1.0, score.Score)
}

func TestMatcher_Score_DifferentTypesNotComparable(t *testing.T) {
	m := New(0.8, nil)

	a := record("csv", models.RecordTypeOrganization, map[string]any{"name": "jane doe"})
	b := record("csv", models.RecordTypePerson, map[string]any{"full_name": "jane doe"})

	_, ok := m.Score(a, b)
	assert.False(t, ok)
}

func TestMatcher_ScorePairs_TrustTieBreak(t *testing.T) {
	m := New(0.8, []models.SourcePriority{
		{Source: "csv", Priority: 2},
		{Source: "api", Priority: 1},
	})

	records := []*models.NormalizedRecord{
		record("api", models.RecordTypeOrganization, map[string]any{"domain": "acme.io"}),
		record("api", models.RecordTypeOrganization, map[string]any{"domain": "acme.io"}),
		record("csv", models.RecordTypeOrganization, map[string]any{"domain": "acme.io"}),
	}

	pairs := []models.CandidatePair{{A: 0, B: 1}, {A: 0, B: 2}, {A: 1, B: 2}}

	scored := m.ScorePairs(records, pairs)
	require.Len(t, scored, 3)

	// All three score 1.0; pairs touching the higher-trust csv source
	// order first, then index order.
	assert.Equal(t, models.CandidatePair{A: 0, B: 2}, scored[0].Pair)
	assert.Equal(t, models.CandidatePair{A: 1, B: 2}, scored[1].Pair)
	assert.Equal(t, models.CandidatePair{A: 0, B: 1}, scored[2].Pair)
}
