package similarity

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeOrgCorpus struct {
	orgs      map[uuid.UUID]*models.Organization
	listCalls int
}

func (f *fakeOrgCorpus) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "organization not found")
	}
	return org, nil
}

func (f *fakeOrgCorpus) List(_ context.Context) ([]*models.Organization, error) {
	f.listCalls++
	result := make([]*models.Organization, 0, len(f.orgs))
	for _, org := range f.orgs {
		result = append(result, org)
	}
	return result, nil
}

type fakeFeatureCorpus struct {
	features  map[uuid.UUID]*models.FounderFeatures
	listCalls int
}

func (f *fakeFeatureCorpus) Get(_ context.Context, personID uuid.UUID) (*models.FounderFeatures, error) {
	features, ok := f.features[personID]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "founder features not found")
	}
	return features, nil
}

func (f *fakeFeatureCorpus) List(_ context.Context) ([]*models.FounderFeatures, error) {
	f.listCalls++
	result := make([]*models.FounderFeatures, 0, len(f.features))
	for _, features := range f.features {
		result = append(result, features)
	}
	return result, nil
}

type fakeCache struct {
	entries map[string]string
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.sets++
	f.entries[key] = value.(string)
	return nil
}

func testOrg(name string, funding float64, updatedAt time.Time, categories ...string) *models.Organization {
	return &models.Organization{
		UUID:            uuid.New(),
		Name:            &name,
		Categories:      categories,
		TotalFundingUSD: &funding,
		UpdatedAt:       updatedAt,
	}
}

func testService(orgs *fakeOrgCorpus, features *fakeFeatureCorpus, cache Cache) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(orgs, features, NewEngine(nil), cache, time.Minute, logger)
}

func TestService_SimilarOrganizations_RanksByScore(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := testOrg("target", 1000, updatedAt, "fintech", "saas")
	near := testOrg("near", 1000, updatedAt, "fintech", "saas")
	far := testOrg("far", 50, updatedAt, "biotech")
	corpus := &fakeOrgCorpus{orgs: map[uuid.UUID]*models.Organization{
		target.UUID: target,
		near.UUID:  near,
		far.UUID:    far,
	}}
	service := testService(corpus, nil, nil)

	result, err := service.SimilarOrganizations(context.Background(), target.UUID, 10, nil)

	require.NoError(t, err)
	assert.Equal(t, target.UUID, result.EntityUUID)
	require.Len(t, result.Results, 2)
	assert.Equal(t, near.UUID, result.Results[0].EntityUUID)
	assert.Equal(t, far.UUID, result.Results[1].EntityUUID)
	assert.Greater(t, result.Results[0].Score, result.Results[1].Score)
	assert.NotEmpty(t, result.Results[0].TopFactors)
}

func TestService_SimilarOrganizations_UnknownTarget(t *testing.T) {
	corpus := &fakeOrgCorpus{orgs: map[uuid.UUID]*models.Organization{}}
	service := testService(corpus, nil, nil)

	_, err := service.SimilarOrganizations(context.Background(), uuid.New(), 10, nil)

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestService_SimilarOrganizations_CachesResults(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := testOrg("target", 1000, updatedAt, "fintech")
	other := testOrg("other", 900, updatedAt, "fintech")
	corpus := &fakeOrgCorpus{orgs: map[uuid.UUID]*models.Organization{
		target.UUID: target,
		other.UUID:  other,
	}}
	cache := newFakeCache()
	service := testService(corpus, nil, cache)

	first, err := service.SimilarOrganizations(context.Background(), target.UUID, 5, nil)
	require.NoError(t, err)
	second, err := service.SimilarOrganizations(context.Background(), target.UUID, 5, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, corpus.listCalls, "second query should be served from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestService_SimilarOrganizations_UpdatedTargetMissesCache(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := testOrg("target", 1000, updatedAt, "fintech")
	other := testOrg("other", 900, updatedAt, "fintech")
	corpus := &fakeOrgCorpus{orgs: map[uuid.UUID]*models.Organization{
		target.UUID: target,
		other.UUID:  other,
	}}
	cache := newFakeCache()
	service := testService(corpus, nil, cache)

	_, err := service.SimilarOrganizations(context.Background(), target.UUID, 5, nil)
	require.NoError(t, err)

	// A new merge bumps updated_at, which changes the cache key.
	target.UpdatedAt = updatedAt.Add(time.Hour)
	_, err = service.SimilarOrganizations(context.Background(), target.UUID, 5, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, corpus.listCalls)
	assert.Equal(t, 2, cache.sets)
}

func TestService_SimilarOrganizations_WeightsKeyCache(t *testing.T) {
	updatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := testOrg("target", 1000, updatedAt, "fintech")
	other := testOrg("other", 900, updatedAt, "fintech")
	corpus := &fakeOrgCorpus{orgs: map[uuid.UUID]*models.Organization{
		target.UUID: target,
		other.UUID:  other,
	}}
	cache := newFakeCache()
	service := testService(corpus, nil, cache)

	_, err := service.SimilarOrganizations(context.Background(), target.UUID, 5, nil)
	require.NoError(t, err)
	_, err = service.SimilarOrganizations(context.Background(), target.UUID, 5, models.SimilarityWeights{NumericWeightKey: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, corpus.listCalls, "overridden weights must not reuse the default-weight entry")
}

func TestService_SimilarPeople_RanksByFeatures(t *testing.T) {
	computedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := &models.FounderFeatures{
		PersonUUID:            uuid.New(),
		TotalCompaniesFounded: 3,
		TotalFundingRaised:    5_000_000,
		CompanyCategories:     []string{"fintech", "saas"},
		JobTitles:             []string{"founder", "ceo"},
		ComputedAt:            computedAt,
	}
	near := &models.FounderFeatures{
		PersonUUID:            uuid.New(),
		TotalCompaniesFounded: 3,
		TotalFundingRaised:    4_500_000,
		CompanyCategories:     []string{"fintech", "saas"},
		JobTitles:             []string{"founder"},
		ComputedAt:            computedAt,
	}
	far := &models.FounderFeatures{
		PersonUUID:            uuid.New(),
		TotalCompaniesFounded: 1,
		TotalFundingRaised:    10_000,
		CompanyCategories:     []string{"biotech"},
		JobTitles:             []string{"cto"},
		ComputedAt:            computedAt,
	}
	corpus := &fakeFeatureCorpus{features: map[uuid.UUID]*models.FounderFeatures{
		target.PersonUUID: target,
		near.PersonUUID:  near,
		far.PersonUUID:    far,
	}}
	service := testService(nil, corpus, nil)

	result, err := service.SimilarPeople(context.Background(), target.PersonUUID, 10, nil)

	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, near.PersonUUID, result.Results[0].EntityUUID)
	assert.Equal(t, far.PersonUUID, result.Results[1].EntityUUID)
}

func TestService_SimilarPeople_WithoutFeatures(t *testing.T) {
	corpus := &fakeFeatureCorpus{features: map[uuid.UUID]*models.FounderFeatures{}}
	service := testService(nil, corpus, nil)

	_, err := service.SimilarPeople(context.Background(), uuid.New(), 10, nil)

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
