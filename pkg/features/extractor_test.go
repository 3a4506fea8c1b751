package features

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func strPtr(s string) *string          { return &s }
func floatPtr(f float64) *float64      { return &f }
func timePtr(t time.Time) *time.Time   { return &t }
func uuidPtr(u uuid.UUID) *uuid.UUID   { return &u }

func fixedExtractor(now time.Time) *Extractor {
	e := NewExtractor(nil)
	e.now = func() time.Time { return now }
	return e
}

func TestExtractor_FounderFeatures(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := fixedExtractor(now)

	person := &models.Person{UUID: uuid.New()}

	orgA := &models.Organization{
		UUID:            uuid.New(),
		Categories:      []string{"fintech", "saas"},
		TotalFundingUSD: floatPtr(1_000_000),
		Status:          strPtr("acquired"),
		FoundedOn:       timePtr(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)),
		ClosedOn:        timePtr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	orgB := &models.Organization{
		UUID:            uuid.New(),
		Categories:      []string{"saas", "devtools"},
		TotalFundingUSD: floatPtr(500_000),
		Status:          strPtr("operating"),
		// founded_on unknown: excluded from lifespan average.
	}
	orgs := map[uuid.UUID]*models.Organization{orgA.UUID: orgA, orgB.UUID: orgB}

	jobs := []*models.Job{
		{PersonUUID: person.UUID, OrgUUID: uuidPtr(orgA.UUID), Title: strPtr("Co-Founder & CEO"), IsFounder: true},
		{PersonUUID: person.UUID, OrgUUID: uuidPtr(orgB.UUID), Title: strPtr("Founder"), IsFounder: true},
		{PersonUUID: person.UUID, Title: strPtr("Board Member"), JobType: strPtr("executive")},
	}

	features, ok := e.FounderFeatures(person, jobs, orgs)
	require.True(t, ok)

	assert.Equal(t, person.UUID, features.PersonUUID)
	assert.Equal(t, 2, features.TotalCompaniesFounded)
	assert.Equal(t, []string{"devtools", "fintech", "saas"}, []string(features.CompanyCategories))
	assert.Equal(t, 1_500_000.0, features.TotalFundingRaised)
	assert.Equal(t, 1, features.ExitsCount)
	assert.Equal(t, 1, features.LeadershipRolesCount)
	assert.Equal(t, []string{"board member", "co-founder & ceo", "founder"}, []string(features.JobTitles))

	// Only orgA has a known founded_on: 2015-01-01 to 2020-01-01.
	require.NotNil(t, features.AvgCompanyLifespanDays)
	assert.InDelta(t, 1826, *features.AvgCompanyLifespanDays, 1)
	assert.Equal(t, now, features.ComputedAt)
}

func TestExtractor_FounderFeatures_NoFounderJob(t *testing.T) {
	e := fixedExtractor(time.Now())

	person := &models.Person{UUID: uuid.New()}
	jobs := []*models.Job{
		{PersonUUID: person.UUID, Title: strPtr("Staff Engineer"), JobType: strPtr("employee")},
	}

	_, ok := e.FounderFeatures(person, jobs, nil)
	assert.False(t, ok)
}

func TestExtractor_FounderFeatures_NoKnownFoundedOn(t *testing.T) {
	e := fixedExtractor(time.Now())

	person := &models.Person{UUID: uuid.New()}
	org := &models.Organization{UUID: uuid.New()}
	jobs := []*models.Job{
		{PersonUUID: person.UUID, OrgUUID: uuidPtr(org.UUID), IsFounder: true},
	}

	features, ok := e.FounderFeatures(person, jobs, map[uuid.UUID]*models.Organization{org.UUID: org})
	require.True(t, ok)
	assert.Nil(t, features.AvgCompanyLifespanDays, "lifespan is null when no founded_on is known, not zero")
}

func TestExtractor_IsFounderRole(t *testing.T) {
	e := NewExtractor([]string{"founder", "co-founder"})

	tests := []struct {
		name     string
		job      *models.Job
		expected bool
	}{
		{name: "flagged at normalization", job: &models.Job{IsFounder: true}, expected: true},
		{name: "founder job type", job: &models.Job{JobType: strPtr("Founder")}, expected: true},
		{name: "title keyword", job: &models.Job{Title: strPtr("Technical Co-Founder")}, expected: true},
		{name: "plain role", job: &models.Job{Title: strPtr("Engineering Manager")}, expected: false},
		{name: "empty job", job: &models.Job{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.IsFounderRole(tt.job))
		})
	}
}
