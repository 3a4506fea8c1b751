package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var columns = []string{
	"uuid", "name", "first_name", "last_name", "gender", "country_code",
	"region", "city", "linkedin_url", "featured_job_organization_uuid",
	"featured_job_title", "sources", "created_at", "updated_at",
	"last_processed_at", "version",
}

// Repository handles canonical person persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes a canonical person with optimistic concurrency. A version
// of zero inserts; a stale version returns ErrStoreWriteConflict.
func (r *Repository) Upsert(ctx context.Context, person *models.Person) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	if person.Version == 0 {
		if person.UUID == uuid.Nil {
			person.UUID = uuid.New()
		}
		person.CreatedAt = now
		person.UpdatedAt = now
		person.Version = 1

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("people")
		sb.Cols(columns...)
		sb.Values(person.UUID, person.Name, person.FirstName, person.LastName, person.Gender, person.CountryCode,
			person.Region, person.City, person.LinkedinURL, person.FeaturedJobOrganizationUUID,
			person.FeaturedJobTitle, person.Sources, person.CreatedAt, person.UpdatedAt,
			person.LastProcessedAt, person.Version)

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to insert person")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert person")
		}
		return person, nil
	}

	readVersion := person.Version
	person.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("people")
	sb.Set(
		sb.Assign("name", person.Name),
		sb.Assign("first_name", person.FirstName),
		sb.Assign("last_name", person.LastName),
		sb.Assign("gender", person.Gender),
		sb.Assign("country_code", person.CountryCode),
		sb.Assign("region", person.Region),
		sb.Assign("city", person.City),
		sb.Assign("linkedin_url", person.LinkedinURL),
		sb.Assign("featured_job_organization_uuid", person.FeaturedJobOrganizationUUID),
		sb.Assign("featured_job_title", person.FeaturedJobTitle),
		sb.Assign("sources", person.Sources),
		sb.Assign("updated_at", person.UpdatedAt),
		sb.Add("version", 1),
	)
	sb.Where(
		sb.Equal("uuid", person.UUID),
		sb.Equal("version", readVersion),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"uuid":    person.UUID,
			"version": readVersion,
		}).Warn("Person version conflict")
		return nil, models.ErrStoreWriteConflict
	}

	person.Version = readVersion + 1
	return person, nil
}

// Get retrieves a person by uuid
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("people")
	sb.Where(sb.Equal("uuid", id))

	query, args := sb.Build()
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}

	return &person, nil
}

// ListChangedSince returns people updated after the watermark. A nil
// watermark returns everything.
func (r *Repository) ListChangedSince(ctx context.Context, since *time.Time) ([]*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.ListChangedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("people")
	if since != nil {
		sb.Where(sb.GreaterThan("updated_at", *since))
	}
	sb.OrderBy("uuid")

	query, args := sb.Build()
	var people []*models.Person
	if err := r.db.SelectContext(ctx, &people, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list people")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list people")
	}

	return people, nil
}

// ListStale returns people whose linked jobs or organizations changed
// after the person's feature watermark, so feature recomputation touches
// only what moved.
func (r *Repository) ListStale(ctx context.Context) ([]*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.ListStale")
	defer span.End()

	query := `
		SELECT DISTINCT p.uuid, p.name, p.first_name, p.last_name, p.gender, p.country_code,
			p.region, p.city, p.linkedin_url, p.featured_job_organization_uuid,
			p.featured_job_title, p.sources, p.created_at, p.updated_at,
			p.last_processed_at, p.version
		FROM people p
		JOIN jobs j ON j.person_uuid = p.uuid
		LEFT JOIN organizations o ON o.uuid = j.org_uuid
		WHERE p.last_processed_at IS NULL
			OR j.updated_at > p.last_processed_at
			OR o.updated_at > p.last_processed_at
		ORDER BY p.uuid`

	var people []*models.Person
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list stale people")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list stale people")
	}

	return people, nil
}

// AdvanceWatermark moves last_processed_at forward after a successful
// feature recomputation. It never moves the watermark backwards.
func (r *Repository) AdvanceWatermark(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.AdvanceWatermark")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("people")
	sb.Set(sb.Assign("last_processed_at", processedAt))
	sb.Where(
		sb.Equal("uuid", id),
		sb.Or(
			sb.IsNull("last_processed_at"),
			sb.LessThan("last_processed_at", processedAt),
		),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to advance watermark")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to advance watermark")
	}

	return nil
}

// Delete removes a person and, in the same transaction, their jobs and
// feature row. Person deletion is the only cascade in the schema.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Delete")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	jobDelete := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	jobDelete.DeleteFrom("jobs")
	jobDelete.Where(jobDelete.Equal("person_uuid", id))

	query, args := jobDelete.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to cascade job deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete person")
	}

	featureDelete := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	featureDelete.DeleteFrom("founder_features")
	featureDelete.Where(featureDelete.Equal("person_uuid", id))

	query, args = featureDelete.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete founder features")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete person")
	}

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("people")
	del.Where(del.Equal("uuid", id))

	query, args = del.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete person")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete person")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"uuid": id}).Info("Deleted person and cascaded jobs")
	return nil
}
