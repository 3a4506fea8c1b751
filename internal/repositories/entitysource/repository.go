package entitysource

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository maps source records to canonical entity uuids. This table is
// what keeps identity stable across pipeline runs: a cluster reuses any
// uuid its members were previously assigned.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity source repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// MapByType returns every source-to-entity mapping for a record type,
// keyed "source:source_record_id".
func (r *Repository) MapByType(ctx context.Context, recordType models.RecordType) (map[string]uuid.UUID, error) {
	ctx, span := tracing.StartSpan(ctx, "entitysource.Repository.MapByType")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("source", "source_record_id", "record_type", "entity_uuid")
	sb.From("entity_sources")
	sb.Where(sb.Equal("record_type", recordType))

	query, args := sb.Build()
	var sources []*models.EntitySource
	if err := r.db.SelectContext(ctx, &sources, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load entity source mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load entity source mappings")
	}

	mapped := make(map[string]uuid.UUID, len(sources))
	for _, s := range sources {
		mapped[s.Source+":"+s.SourceRecordID] = s.EntityUUID
	}
	return mapped, nil
}

// Assign records that a source row resolves to a canonical entity. A row
// re-resolving to the same entity is a no-op; re-resolving to a different
// entity follows the merge (the cluster absorbed the old entity).
func (r *Repository) Assign(ctx context.Context, source *models.EntitySource) error {
	ctx, span := tracing.StartSpan(ctx, "entitysource.Repository.Assign")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto("entity_sources")
	sb.Cols("source", "source_record_id", "record_type", "entity_uuid")
	sb.Values(source.Source, source.SourceRecordID, source.RecordType, source.EntityUUID)

	ub := sb.OnConflict("source", "source_record_id", "record_type")
	ub.Set(ub.Assign("entity_uuid", database.Excluded("entity_uuid")))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to assign entity source")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to assign entity source")
	}

	return nil
}

// DeleteByEntity clears all mappings for an entity, used when the entity
// itself is deleted.
func (r *Repository) DeleteByEntity(ctx context.Context, entityUUID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "entitysource.Repository.DeleteByEntity")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("entity_sources")
	del.Where(del.Equal("entity_uuid", entityUUID))

	query, args := del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete entity source mappings")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity source mappings")
	}

	return nil
}
