package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Store interfaces are the pipeline's only view of persistence, so the
// resolution flow tests against in-memory fakes.

type RawRecordStore interface {
	ListChangedSince(ctx context.Context, since *time.Time) ([]*models.RawRecord, error)
}

type OrganizationStore interface {
	Upsert(ctx context.Context, org *models.Organization) (*models.Organization, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

type PersonStore interface {
	Upsert(ctx context.Context, person *models.Person) (*models.Person, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	ListStale(ctx context.Context) ([]*models.Person, error)
	AdvanceWatermark(ctx context.Context, id uuid.UUID, processedAt time.Time) error
}

type JobStore interface {
	Upsert(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Job, error)
}

type FounderFeatureStore interface {
	Upsert(ctx context.Context, features *models.FounderFeatures) error
	DeleteByPerson(ctx context.Context, personID uuid.UUID) error
}

type ReviewFlagStore interface {
	Create(ctx context.Context, flag *models.ReviewFlag) (*models.ReviewFlag, error)
}

type EntitySourceStore interface {
	MapByType(ctx context.Context, recordType models.RecordType) (map[string]uuid.UUID, error)
	Assign(ctx context.Context, source *models.EntitySource) error
}

// EventEmitter publishes entity lifecycle events for downstream consumers.
type EventEmitter interface {
	EntityMerged(ctx context.Context, recordType models.RecordType, entityUUID uuid.UUID, sources string) error
}

// Stores bundles the pipeline's persistence dependencies.
type Stores struct {
	RawRecords      RawRecordStore
	Organizations   OrganizationStore
	People          PersonStore
	Jobs            JobStore
	FounderFeatures FounderFeatureStore
	ReviewFlags     ReviewFlagStore
	EntitySources   EntitySourceStore
}
