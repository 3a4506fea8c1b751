package job

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
	"uuid", "person_uuid", "org_uuid", "title", "job_type", "is_founder",
	"is_current", "started_on", "ended_on", "sources", "created_at",
	"updated_at", "version",
}

// Repository handles canonical job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes a canonical job with optimistic concurrency. Every job
// must reference an existing person; the foreign key rejects orphans.
func (r *Repository) Upsert(ctx context.Context, job *models.Job) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	if job.Version == 0 {
		if job.UUID == uuid.Nil {
			job.UUID = uuid.New()
		}
		job.CreatedAt = now
		job.UpdatedAt = now
		job.Version = 1

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("jobs")
		sb.Cols(columns...)
		sb.Values(job.UUID, job.PersonUUID, job.OrgUUID, job.Title, job.JobType, job.IsFounder,
			job.IsCurrent, job.StartedOn, job.EndedOn, job.Sources, job.CreatedAt,
			job.UpdatedAt, job.Version)

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to insert job")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert job")
		}
		return job, nil
	}

	readVersion := job.Version
	job.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("jobs")
	sb.Set(
		sb.Assign("person_uuid", job.PersonUUID),
		sb.Assign("org_uuid", job.OrgUUID),
		sb.Assign("title", job.Title),
		sb.Assign("job_type", job.JobType),
		sb.Assign("is_founder", job.IsFounder),
		sb.Assign("is_current", job.IsCurrent),
		sb.Assign("started_on", job.StartedOn),
		sb.Assign("ended_on", job.EndedOn),
		sb.Assign("sources", job.Sources),
		sb.Assign("updated_at", job.UpdatedAt),
		sb.Add("version", 1),
	)
	sb.Where(
		sb.Equal("uuid", job.UUID),
		sb.Equal("version", readVersion),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update job")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"uuid":    job.UUID,
			"version": readVersion,
		}).Warn("Job version conflict")
		return nil, models.ErrStoreWriteConflict
	}

	job.Version = readVersion + 1
	return job, nil
}

// Get retrieves a job by uuid
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("jobs")
	sb.Where(sb.Equal("uuid", id))

	query, args := sb.Build()
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get job")
	}

	return &job, nil
}

// ListByPerson returns a person's jobs ordered by started_on, nulls last.
func (r *Repository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.ListByPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("jobs")
	sb.Where(sb.Equal("person_uuid", personID))
	sb.OrderBy("started_on ASC NULLS LAST", "uuid")

	query, args := sb.Build()
	var jobs []*models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list jobs by person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list jobs")
	}

	return jobs, nil
}

// ListChangedSince returns jobs updated after the watermark. A nil
// watermark returns everything.
func (r *Repository) ListChangedSince(ctx context.Context, since *time.Time) ([]*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.ListChangedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("jobs")
	if since != nil {
		sb.Where(sb.GreaterThan("updated_at", *since))
	}
	sb.OrderBy("uuid")

	query, args := sb.Build()
	var jobs []*models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list jobs")
	}

	return jobs, nil
}

// Delete removes a single job.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "job.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("jobs")
	del.Where(del.Equal("uuid", id))

	query, args := del.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete job")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("job %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"uuid": id}).Info("Deleted job")
	return nil
}
