package similarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// OrganizationStore is the corpus source for organization queries.
type OrganizationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
}

// FounderFeatureStore is the corpus source for person queries.
type FounderFeatureStore interface {
	Get(ctx context.Context, personID uuid.UUID) (*models.FounderFeatures, error)
	List(ctx context.Context) ([]*models.FounderFeatures, error)
}

// Cache stores serialized query results. found=false signals a miss.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Service answers ranked similarity queries over canonical entities. The
// corpus is loaded per query and statistics are computed over that batch,
// so scores are comparable within one response but not across responses.
type Service struct {
	orgs     OrganizationStore
	features FounderFeatureStore
	engine   *Engine
	cache    Cache
	cacheTTL time.Duration
	logger   ectologger.Logger
	now      func() time.Time
}

// NewService builds a similarity service. cache may be nil to disable
// result caching.
func NewService(
	orgs OrganizationStore,
	features FounderFeatureStore,
	engine *Engine,
	cache Cache,
	cacheTTL time.Duration,
	logger ectologger.Logger,
) *Service {
	return &Service{
		orgs:     orgs,
		features: features,
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SimilarOrganizations returns the k most similar organizations to the
// target, with per-result factor explanations.
func (s *Service) SimilarOrganizations(ctx context.Context, id uuid.UUID, k int, weights models.SimilarityWeights) (*models.SimilarityResult, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Service.SimilarOrganizations")
	defer span.End()
	start := s.now()

	target, err := s.orgs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey("org", id, k, weights, target.UpdatedAt)
	if result, ok := s.cached(ctx, cacheKey); ok {
		metrics.RecordSimilarityQuery(string(models.RecordTypeOrganization), "hit", time.Since(start).Seconds())
		return result, nil
	}

	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	vectors := make([]*Vector, 0, len(orgs))
	var targetVector *Vector
	for _, org := range orgs {
		vector := OrganizationVector(org, now)
		vectors = append(vectors, vector)
		if org.UUID == id {
			targetVector = vector
		}
	}

	result := s.rank(id, targetVector, vectors, k, weights)
	s.store(ctx, cacheKey, result)
	metrics.RecordSimilarityQuery(string(models.RecordTypeOrganization), "miss", time.Since(start).Seconds())
	return result, nil
}

// SimilarPeople returns the k most similar people to the target, compared
// on their founder feature vectors. People without founder features are
// absent from the corpus and cannot be queried.
func (s *Service) SimilarPeople(ctx context.Context, id uuid.UUID, k int, weights models.SimilarityWeights) (*models.SimilarityResult, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Service.SimilarPeople")
	defer span.End()
	start := s.now()

	target, err := s.features.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey("person", id, k, weights, target.ComputedAt)
	if result, ok := s.cached(ctx, cacheKey); ok {
		metrics.RecordSimilarityQuery(string(models.RecordTypePerson), "hit", time.Since(start).Seconds())
		return result, nil
	}

	features, err := s.features.List(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make([]*Vector, 0, len(features))
	var targetVector *Vector
	for _, f := range features {
		vector := PersonVector(f)
		vectors = append(vectors, vector)
		if f.PersonUUID == id {
			targetVector = vector
		}
	}

	result := s.rank(id, targetVector, vectors, k, weights)
	s.store(ctx, cacheKey, result)
	metrics.RecordSimilarityQuery(string(models.RecordTypePerson), "miss", time.Since(start).Seconds())
	return result, nil
}

func (s *Service) rank(id uuid.UUID, target *Vector, corpus []*Vector, k int, weights models.SimilarityWeights) *models.SimilarityResult {
	stats := ComputeStats(corpus)
	results := s.engine.TopK(target, corpus, stats, k, weights)
	if results == nil {
		results = []models.SimilarEntity{}
	}
	return &models.SimilarityResult{
		EntityUUID: id,
		K:          k,
		Results:    results,
	}
}

// cacheKey folds the target's freshness stamp into the key, so stale
// cache entries age out naturally instead of needing invalidation.
func (s *Service) cacheKey(kind string, id uuid.UUID, k int, weights models.SimilarityWeights, stamp time.Time) string {
	return fmt.Sprintf("fern:similarity:%s:%s:%d:%s:%d", kind, id, k, weightsHash(weights), stamp.UnixNano())
}

func (s *Service) cached(ctx context.Context, key string) (*models.SimilarityResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Similarity cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var result models.SimilarityResult
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Similarity cache entry corrupt")
		return nil, false
	}
	return &result, true
}

func (s *Service) store(ctx context.Context, key string, result *models.SimilarityResult) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Similarity cache write failed")
	}
}

func weightsHash(weights models.SimilarityWeights) string {
	if len(weights) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(h, "%s=%v;", key, weights[key])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
