// Package pipeline runs the full resolution pass: load raw records,
// normalize, block, score, cluster, merge, persist, and recompute derived
// features. Reprocessing is idempotent rather than atomic; record-level
// failures are counted and skipped, never fatal to the batch.
package pipeline

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/features"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const defaultWorkerCount = 4
const defaultUpsertRetries = 3

// Config tunes a pipeline instance.
type Config struct {
	WorkerCount      int
	MatchThreshold   float64
	SourcePriorities []models.SourcePriority
	FounderKeywords  []string
	UpsertRetries    int
}

// Pipeline owns one resolution flow over the configured stores.
type Pipeline struct {
	stores        Stores
	normalizer    *normalize.Normalizer
	matcher       *matching.Matcher
	resolver      *merging.Resolver
	extractor     *features.Extractor
	emitter       EventEmitter
	logger        ectologger.Logger
	workerCount   int
	upsertRetries int
	now           func() time.Time
}

// New builds a pipeline. emitter may be nil when no event transport is
// wired.
func New(cfg Config, stores Stores, emitter EventEmitter, logger ectologger.Logger) *Pipeline {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	retries := cfg.UpsertRetries
	if retries <= 0 {
		retries = defaultUpsertRetries
	}
	return &Pipeline{
		stores:        stores,
		normalizer:    normalize.New(cfg.FounderKeywords),
		matcher:       matching.New(cfg.MatchThreshold, cfg.SourcePriorities),
		resolver:      merging.NewResolver(cfg.SourcePriorities),
		extractor:     features.NewExtractor(cfg.FounderKeywords),
		emitter:       emitter,
		logger:        logger,
		workerCount:   workerCount,
		upsertRetries: retries,
		now:           time.Now,
	}
}

// ResolveAndScore runs one batch pass over raw records captured after the
// watermark (nil means the full corpus) and returns the run summary.
func (p *Pipeline) ResolveAndScore(ctx context.Context, since *time.Time) (*models.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.ResolveAndScore")
	defer span.End()

	summary := models.NewSummary()
	runStart := p.now().UTC()

	raw, err := p.stores.RawRecords.ListChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	byType := map[models.RecordType][]*models.NormalizedRecord{}
	for _, record := range raw {
		normalized, err := p.normalizer.Record(record)
		if err != nil {
			kind, _ := models.KindOf(err)
			summary.AddError(kind, record.Key())
			summary.AddSkipped(1)
			p.logger.WithContext(ctx).WithError(err).WithField("record", record.Key()).Warn("Skipping malformed record")
			continue
		}
		byType[normalized.RecordType] = append(byType[normalized.RecordType], normalized)
	}

	// Organizations and people resolve first so jobs can reference their
	// canonical uuids.
	orgMap, err := p.resolveType(ctx, models.RecordTypeOrganization, byType[models.RecordTypeOrganization], nil, summary)
	if err != nil {
		return nil, err
	}
	personMap, err := p.resolveType(ctx, models.RecordTypePerson, byType[models.RecordTypePerson], orgMap, summary)
	if err != nil {
		return nil, err
	}
	if err := p.resolveJobs(ctx, byType[models.RecordTypeJob], personMap, orgMap, summary); err != nil {
		return nil, err
	}

	if err := p.recomputeFeatures(ctx, runStart, summary); err != nil {
		return nil, err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"processed": summary.Processed,
		"merged":    summary.Merged,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
		"duration":  time.Since(runStart).String(),
	}).Info("Resolution pass complete")

	return summary, nil
}

// resolveType blocks, scores, clusters, and persists all records of one
// entity kind. orgMap carries organization assignments for resolving
// person-side references. The returned map carries every source key to
// its canonical uuid, previous runs included.
func (p *Pipeline) resolveType(
	ctx context.Context,
	recordType models.RecordType,
	records []*models.NormalizedRecord,
	orgMap map[string]uuid.UUID,
	summary *models.Summary,
) (map[string]uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.resolveType")
	defer span.End()

	existing, err := p.stores.EntitySources.MapByType(ctx, recordType)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return existing, nil
	}

	blocks := blocking.Build(records)
	pairs := blocking.Pairs(blocks)
	scores := p.matcher.ScorePairs(records, pairs)
	clusters, ambiguous := p.resolver.Clusters(records, scores, existing)

	for _, amb := range ambiguous {
		p.flagAmbiguous(ctx, amb, summary)
	}

	var mu sync.Mutex
	p.runClusters(ctx, clusters, func(ctx context.Context, cluster models.MatchCluster) {
		assigned, ok := p.persistCluster(ctx, recordType, records, cluster, orgMap, summary)
		if !ok {
			return
		}
		mu.Lock()
		for key, id := range assigned {
			existing[key] = id
		}
		mu.Unlock()
	})

	return existing, nil
}

// persistCluster merges one cluster into its canonical entity. Returns the
// source-key assignments on success.
func (p *Pipeline) persistCluster(
	ctx context.Context,
	recordType models.RecordType,
	records []*models.NormalizedRecord,
	cluster models.MatchCluster,
	orgMap map[string]uuid.UUID,
	summary *models.Summary,
) (map[string]uuid.UUID, bool) {
	members := make([]*models.NormalizedRecord, len(cluster.Records))
	for i, idx := range cluster.Records {
		members[i] = records[idx]
	}

	fields := p.resolver.ResolveFields(members)
	sources := p.resolver.Provenance(members)

	entityID := uuid.New()
	isExisting := len(cluster.ExistingUUIDs) == 1
	if isExisting {
		entityID = cluster.ExistingUUIDs[0]
	}

	var err error
	switch recordType {
	case models.RecordTypeOrganization:
		err = p.upsertOrganization(ctx, entityID, isExisting, fields, sources)
	case models.RecordTypePerson:
		err = p.upsertPerson(ctx, entityID, isExisting, fields, sources, members, orgMap)
	}
	if err != nil {
		p.recordClusterError(ctx, err, members, summary)
		return nil, false
	}

	assigned := make(map[string]uuid.UUID, len(members))
	for _, member := range members {
		source := &models.EntitySource{
			Source:         member.Source,
			SourceRecordID: member.SourceRecordID,
			RecordType:     recordType,
			EntityUUID:     entityID,
		}
		if err := p.stores.EntitySources.Assign(ctx, source); err != nil {
			p.recordClusterError(ctx, err, members, summary)
			return nil, false
		}
		assigned[member.Key()] = entityID
	}

	summary.AddProcessed(len(members))
	if len(members) > 1 {
		summary.AddMerged(1)
		if p.emitter != nil {
			if err := p.emitter.EntityMerged(ctx, recordType, entityID, sources); err != nil {
				p.logger.WithContext(ctx).WithError(err).Warn("Failed to publish merge event")
			}
		}
	}

	return assigned, true
}

func (p *Pipeline) upsertOrganization(ctx context.Context, id uuid.UUID, isExisting bool, fields map[string]any, sources string) error {
	for attempt := 0; attempt < p.upsertRetries; attempt++ {
		org := &models.Organization{UUID: id}
		if isExisting {
			current, err := p.stores.Organizations.Get(ctx, id)
			switch {
			case isNotFound(err):
				// Mapping exists but the entity was deleted; recreate.
			case err != nil:
				return err
			default:
				org = current
			}
		}

		applyOrganization(org, fields)
		org.Sources = sources

		_, err := p.stores.Organizations.Upsert(ctx, org)
		if err == nil {
			return nil
		}
		if err != models.ErrStoreWriteConflict {
			return err
		}
		// Conflict: reread and re-apply the field policy against the
		// winning row.
		isExisting = true
	}
	return models.ErrStoreWriteConflict
}

func (p *Pipeline) upsertPerson(
	ctx context.Context,
	id uuid.UUID,
	isExisting bool,
	fields map[string]any,
	sources string,
	members []*models.NormalizedRecord,
	orgMap map[string]uuid.UUID,
) error {
	for attempt := 0; attempt < p.upsertRetries; attempt++ {
		person := &models.Person{UUID: id}
		if isExisting {
			current, err := p.stores.People.Get(ctx, id)
			switch {
			case isNotFound(err):
			case err != nil:
				return err
			default:
				person = current
			}
		}

		applyPerson(person, fields)
		person.Sources = sources
		if orgUUID, ok := resolveReference(members, "featured_job_organization_id", orgMap); ok {
			person.FeaturedJobOrganizationUUID = &orgUUID
		}

		_, err := p.stores.People.Upsert(ctx, person)
		if err == nil {
			return nil
		}
		if err != models.ErrStoreWriteConflict {
			return err
		}
		isExisting = true
	}
	return models.ErrStoreWriteConflict
}

// resolveJobs persists job records. Jobs are deduplicated by their source
// references rather than fuzzy matched, and every job must resolve its
// person reference through the entity source map.
func (p *Pipeline) resolveJobs(
	ctx context.Context,
	records []*models.NormalizedRecord,
	personMap map[string]uuid.UUID,
	orgMap map[string]uuid.UUID,
	summary *models.Summary,
) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.resolveJobs")
	defer span.End()

	existing, err := p.stores.EntitySources.MapByType(ctx, models.RecordTypeJob)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	blocks := blocking.Build(records)
	pairs := blocking.Pairs(blocks)
	scores := p.matcher.ScorePairs(records, pairs)
	clusters, ambiguous := p.resolver.Clusters(records, scores, existing)

	for _, amb := range ambiguous {
		p.flagAmbiguous(ctx, amb, summary)
	}

	p.runClusters(ctx, clusters, func(ctx context.Context, cluster models.MatchCluster) {
		members := make([]*models.NormalizedRecord, len(cluster.Records))
		for i, idx := range cluster.Records {
			members[i] = records[idx]
		}

		fields := p.resolver.ResolveFields(members)

		personUUID, ok := resolveReference(members, "person_record_id", personMap)
		if !ok {
			key := members[0].Key()
			summary.AddError(models.ErrKindMalformedRecord, key)
			summary.AddSkipped(len(members))
			p.logger.WithContext(ctx).WithField("record", key).Warn("Skipping job with unresolvable person reference")
			return
		}

		entityID := uuid.New()
		isExisting := len(cluster.ExistingUUIDs) == 1
		if isExisting {
			entityID = cluster.ExistingUUIDs[0]
		}

		err := p.upsertJob(ctx, entityID, isExisting, fields, p.resolver.Provenance(members), personUUID, members, orgMap)
		if err != nil {
			p.recordClusterError(ctx, err, members, summary)
			return
		}

		for _, member := range members {
			source := &models.EntitySource{
				Source:         member.Source,
				SourceRecordID: member.SourceRecordID,
				RecordType:     models.RecordTypeJob,
				EntityUUID:     entityID,
			}
			if err := p.stores.EntitySources.Assign(ctx, source); err != nil {
				p.recordClusterError(ctx, err, members, summary)
				return
			}
		}

		summary.AddProcessed(len(members))
		if len(members) > 1 {
			summary.AddMerged(1)
		}
	})

	return nil
}

func (p *Pipeline) upsertJob(
	ctx context.Context,
	id uuid.UUID,
	isExisting bool,
	fields map[string]any,
	sources string,
	personUUID uuid.UUID,
	members []*models.NormalizedRecord,
	orgMap map[string]uuid.UUID,
) error {
	for attempt := 0; attempt < p.upsertRetries; attempt++ {
		job := &models.Job{UUID: id}
		if isExisting {
			current, err := p.stores.Jobs.Get(ctx, id)
			switch {
			case isNotFound(err):
			case err != nil:
				return err
			default:
				job = current
			}
		}

		applyJob(job, fields)
		job.PersonUUID = personUUID
		job.Sources = sources
		if orgUUID, ok := resolveReference(members, "org_record_id", orgMap); ok {
			job.OrgUUID = &orgUUID
		}

		_, err := p.stores.Jobs.Upsert(ctx, job)
		if err == nil {
			return nil
		}
		if err != models.ErrStoreWriteConflict {
			return err
		}
		isExisting = true
	}
	return models.ErrStoreWriteConflict
}

// recomputeFeatures refreshes founder features for people whose linked
// jobs or organizations changed after their watermark, then advances the
// watermark. Missing inputs null the affected fields rather than failing.
func (p *Pipeline) recomputeFeatures(ctx context.Context, runStart time.Time, summary *models.Summary) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.recomputeFeatures")
	defer span.End()

	stale, err := p.stores.People.ListStale(ctx)
	if err != nil {
		return err
	}

	var orgCache sync.Map

	p.runPeople(ctx, stale, func(ctx context.Context, person *models.Person) {
		jobs, err := p.stores.Jobs.ListByPerson(ctx, person.UUID)
		if err != nil {
			summary.AddError(models.ErrKindFeatureGap, person.UUID.String())
			p.logger.WithContext(ctx).WithError(err).WithField("person", person.UUID).Warn("Failed to load jobs for feature computation")
			return
		}

		orgs := map[uuid.UUID]*models.Organization{}
		for _, job := range jobs {
			if job.OrgUUID == nil {
				continue
			}
			if cached, ok := orgCache.Load(*job.OrgUUID); ok {
				if org, ok := cached.(*models.Organization); ok && org != nil {
					orgs[org.UUID] = org
				}
				continue
			}
			org, err := p.stores.Organizations.Get(ctx, *job.OrgUUID)
			if err != nil {
				// Organization side missing; founder aggregates over it
				// stay null.
				orgCache.Store(*job.OrgUUID, (*models.Organization)(nil))
				if !isNotFound(err) {
					p.logger.WithContext(ctx).WithError(err).WithField("org", *job.OrgUUID).Warn("Failed to load organization for feature computation")
				}
				continue
			}
			orgCache.Store(org.UUID, org)
			orgs[org.UUID] = org
		}

		founderFeatures, hasFounderJob := p.extractor.FounderFeatures(person, jobs, orgs)
		if hasFounderJob {
			if err := p.stores.FounderFeatures.Upsert(ctx, founderFeatures); err != nil {
				summary.AddError(models.ErrKindFeatureGap, person.UUID.String())
				return
			}
		} else {
			if err := p.stores.FounderFeatures.DeleteByPerson(ctx, person.UUID); err != nil {
				summary.AddError(models.ErrKindFeatureGap, person.UUID.String())
				return
			}
		}

		if err := p.stores.People.AdvanceWatermark(ctx, person.UUID, runStart); err != nil {
			p.logger.WithContext(ctx).WithError(err).WithField("person", person.UUID).Warn("Failed to advance feature watermark")
		}
	})

	return nil
}

func (p *Pipeline) flagAmbiguous(ctx context.Context, amb *models.AmbiguousMergeError, summary *models.Summary) {
	candidates := make(pq.StringArray, len(amb.CandidateUUIDs))
	for i, id := range amb.CandidateUUIDs {
		candidates[i] = id.String()
	}

	source, sourceRecordID := splitKey(amb.RecordID)
	flag := &models.ReviewFlag{
		Source:         source,
		SourceRecordID: sourceRecordID,
		RecordType:     amb.RecordType,
		CandidateUUIDs: candidates,
		Reason:         amb.Error(),
	}
	if _, err := p.stores.ReviewFlags.Create(ctx, flag); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to create review flag")
	}

	summary.AddError(models.ErrKindAmbiguousMerge, amb.RecordID)
	summary.AddSkipped(1)
}

func (p *Pipeline) recordClusterError(ctx context.Context, err error, members []*models.NormalizedRecord, summary *models.Summary) {
	key := members[0].Key()
	kind, ok := models.KindOf(err)
	if !ok {
		kind = models.ErrKindStoreFailure
	}
	summary.AddError(kind, key)
	summary.AddSkipped(len(members))
	p.logger.WithContext(ctx).WithError(err).WithField("record", key).Error("Failed to persist cluster")
}

// runClusters fans clusters out over the bounded worker pool. Clusters
// are disjoint by construction, so workers never contend on the same
// entity.
func (p *Pipeline) runClusters(ctx context.Context, clusters []models.MatchCluster, work func(context.Context, models.MatchCluster)) {
	workerCount := p.workerCount
	if workerCount > len(clusters) {
		workerCount = len(clusters)
	}
	if workerCount <= 1 {
		for _, cluster := range clusters {
			work(ctx, cluster)
		}
		return
	}

	jobs := make(chan models.MatchCluster, len(clusters))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cluster := range jobs {
				work(ctx, cluster)
			}
		}()
	}

	for _, cluster := range clusters {
		jobs <- cluster
	}
	close(jobs)
	wg.Wait()
}

func (p *Pipeline) runPeople(ctx context.Context, people []*models.Person, work func(context.Context, *models.Person)) {
	workerCount := p.workerCount
	if workerCount > len(people) {
		workerCount = len(people)
	}
	if workerCount <= 1 {
		for _, person := range people {
			work(ctx, person)
		}
		return
	}

	jobs := make(chan *models.Person, len(people))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for person := range jobs {
				work(ctx, person)
			}
		}()
	}

	for _, person := range people {
		jobs <- person
	}
	close(jobs)
	wg.Wait()
}

// resolveReference maps a source-scoped reference field to a canonical
// uuid, trying each member's source until one resolves.
func resolveReference(members []*models.NormalizedRecord, field string, mapped map[string]uuid.UUID) (uuid.UUID, bool) {
	for _, member := range members {
		ref := member.String(field)
		if ref == "" {
			continue
		}
		if id, ok := mapped[member.Source+":"+ref]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func splitKey(key string) (source, sourceRecordID string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func isNotFound(err error) bool {
	return err != nil && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}
