package merging

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func record(source, id string, capturedAt time.Time, fields map[string]any) *models.NormalizedRecord {
	return &models.NormalizedRecord{
		Source:         source,
		SourceRecordID: id,
		RecordType:     models.RecordTypeOrganization,
		CapturedAt:     capturedAt,
		Fields:         fields,
	}
}

func TestResolver_Clusters_ConnectedComponents(t *testing.T) {
	r := NewResolver(nil)

	records := []*models.NormalizedRecord{
		record("csv", "1", time.Time{}, nil),
		record("api", "2", time.Time{}, nil),
		record("csv", "3", time.Time{}, nil),
		record("api", "4", time.Time{}, nil),
	}

	// 0-1 and 1-2 connect transitively; 3 stays a singleton.
	matches := []models.MatchScore{
		{Pair: models.CandidatePair{A: 0, B: 1}, Score: 0.9},
		{Pair: models.CandidatePair{A: 1, B: 2}, Score: 0.85},
	}

	clusters, ambiguous := r.Clusters(records, matches, nil)
	require.Empty(t, ambiguous)
	require.Len(t, clusters, 2)

	assert.Equal(t, []int{0, 1, 2}, clusters[0].Records)
	assert.Equal(t, []int{3}, clusters[1].Records)
}

func TestResolver_Clusters_ReusesExistingUUID(t *testing.T) {
	r := NewResolver(nil)

	records := []*models.NormalizedRecord{
		record("csv", "1", time.Time{}, nil),
		record("api", "2", time.Time{}, nil),
	}
	existingID := uuid.New()
	existing := map[string]uuid.UUID{"csv:1": existingID}

	matches := []models.MatchScore{{Pair: models.CandidatePair{A: 0, B: 1}, Score: 0.9}}

	clusters, ambiguous := r.Clusters(records, matches, existing)
	require.Empty(t, ambiguous)
	require.Len(t, clusters, 1)
	assert.Equal(t, []uuid.UUID{existingID}, clusters[0].ExistingUUIDs)
}

func TestResolver_Clusters_AmbiguousMergeNotMerged(t *testing.T) {
	r := NewResolver(nil)

	records := []*models.NormalizedRecord{
		record("csv", "1", time.Time{}, nil),
		record("api", "2", time.Time{}, nil),
		record("api", "3", time.Time{}, nil),
	}
	idA, idB := uuid.New(), uuid.New()
	existing := map[string]uuid.UUID{"csv:1": idA, "api:2": idB}

	// Record 3 bridges two distinct canonical entities.
	matches := []models.MatchScore{
		{Pair: models.CandidatePair{A: 0, B: 2}, Score: 0.9},
		{Pair: models.CandidatePair{A: 1, B: 2}, Score: 0.9},
	}

	clusters, ambiguous := r.Clusters(records, matches, existing)

	require.Len(t, ambiguous, 1)
	assert.Len(t, ambiguous[0].CandidateUUIDs, 2)
	assert.Equal(t, models.RecordTypeOrganization, ambiguous[0].RecordType)
	assert.Empty(t, clusters, "an ambiguous cluster must not be merged")

	kind, ok := models.KindOf(ambiguous[0])
	require.True(t, ok)
	assert.Equal(t, models.ErrKindAmbiguousMerge, kind)
}

func TestResolver_ResolveFields_Policy(t *testing.T) {
	r := NewResolver([]models.SourcePriority{
		{Source: "csv", Priority: 2},
		{Source: "api", Priority: 1},
	})

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		members  []*models.NormalizedRecord
		field    string
		expected any
	}{
		{
			name: "non-null beats null",
			members: []*models.NormalizedRecord{
				record("csv", "1", newer, map[string]any{}),
				record("api", "2", older, map[string]any{"name": "acme corp"}),
			},
			field:    "name",
			expected: "acme corp",
		},
		{
			name: "trust beats recency",
			members: []*models.NormalizedRecord{
				record("api", "1", newer, map[string]any{"name": "acme inc"}),
				record("csv", "2", older, map[string]any{"name": "acme corp"}),
			},
			field:    "name",
			expected: "acme corp",
		},
		{
			name: "recency breaks equal trust",
			members: []*models.NormalizedRecord{
				record("api", "1", older, map[string]any{"name": "acme inc"}),
				record("api", "2", newer, map[string]any{"name": "acme corp"}),
			},
			field:    "name",
			expected: "acme corp",
		},
		{
			name: "lexicographic last resort",
			members: []*models.NormalizedRecord{
				record("api", "1", older, map[string]any{"name": "beta"}),
				record("api", "2", older, map[string]any{"name": "alpha"}),
			},
			field:    "name",
			expected: "alpha",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := r.ResolveFields(tt.members)
			assert.Equal(t, tt.expected, resolved[tt.field])
		})
	}
}

func TestResolver_ResolveFields_OrderIndependent(t *testing.T) {
	r := NewResolver([]models.SourcePriority{{Source: "csv", Priority: 1}})

	a := record("csv", "1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), map[string]any{"name": "acme corp", "city": "austin"})
	b := record("api", "2", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), map[string]any{"name": "acme inc", "domain": "acme.io"})

	forward := r.ResolveFields([]*models.NormalizedRecord{a, b})
	reversed := r.ResolveFields([]*models.NormalizedRecord{b, a})

	assert.Equal(t, forward, reversed)
}

func TestResolver_Provenance(t *testing.T) {
	r := NewResolver(nil)

	members := []*models.NormalizedRecord{
		record("csv", "1", time.Time{}, nil),
		record("api", "2", time.Time{}, nil),
		record("csv", "3", time.Time{}, nil),
	}

	assert.Equal(t, "api+csv", r.Provenance(members))
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(3, 4)
	uf.union(1, 3)

	assert.Equal(t, uf.find(0), uf.find(4))
	assert.NotEqual(t, uf.find(0), uf.find(2))
}
