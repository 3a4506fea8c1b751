package organization

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
	"uuid", "name", "legal_name", "domain", "homepage_url", "country_code",
	"region", "city", "status", "short_description", "categories",
	"employee_count", "founded_on", "closed_on", "total_funding_usd",
	"num_funding_rounds", "sources", "created_at", "updated_at",
	"last_processed_at", "version",
}

// Repository handles canonical organization persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new organization repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes a canonical organization with optimistic concurrency. A
// version of zero inserts; otherwise the update must match the version the
// caller read, or ErrStoreWriteConflict is returned so the caller can
// re-apply field resolution and retry.
func (r *Repository) Upsert(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()

	if org.Version == 0 {
		if org.UUID == uuid.Nil {
			org.UUID = uuid.New()
		}
		org.CreatedAt = now
		org.UpdatedAt = now
		org.Version = 1

		sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		sb.InsertInto("organizations")
		sb.Cols(columns...)
		sb.Values(org.UUID, org.Name, org.LegalName, org.Domain, org.HomepageURL, org.CountryCode,
			org.Region, org.City, org.Status, org.ShortDescription, org.Categories,
			org.EmployeeCount, org.FoundedOn, org.ClosedOn, org.TotalFundingUSD,
			org.NumFundingRounds, org.Sources, org.CreatedAt, org.UpdatedAt,
			org.LastProcessedAt, org.Version)

		query, args := sb.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to insert organization")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert organization")
		}
		return org, nil
	}

	readVersion := org.Version
	org.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("organizations")
	sb.Set(
		sb.Assign("name", org.Name),
		sb.Assign("legal_name", org.LegalName),
		sb.Assign("domain", org.Domain),
		sb.Assign("homepage_url", org.HomepageURL),
		sb.Assign("country_code", org.CountryCode),
		sb.Assign("region", org.Region),
		sb.Assign("city", org.City),
		sb.Assign("status", org.Status),
		sb.Assign("short_description", org.ShortDescription),
		sb.Assign("categories", org.Categories),
		sb.Assign("employee_count", org.EmployeeCount),
		sb.Assign("founded_on", org.FoundedOn),
		sb.Assign("closed_on", org.ClosedOn),
		sb.Assign("total_funding_usd", org.TotalFundingUSD),
		sb.Assign("num_funding_rounds", org.NumFundingRounds),
		sb.Assign("sources", org.Sources),
		sb.Assign("updated_at", org.UpdatedAt),
		sb.Add("version", 1),
	)
	sb.Where(
		sb.Equal("uuid", org.UUID),
		sb.Equal("version", readVersion),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update organization")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update organization")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"uuid":    org.UUID,
			"version": readVersion,
		}).Warn("Organization version conflict")
		return nil, models.ErrStoreWriteConflict
	}

	org.Version = readVersion + 1
	return org, nil
}

// Get retrieves an organization by uuid
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("organizations")
	sb.Where(sb.Equal("uuid", id))

	query, args := sb.Build()
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get organization")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get organization")
	}

	return &org, nil
}

// ListChangedSince returns organizations updated after the watermark. A
// nil watermark returns everything.
func (r *Repository) ListChangedSince(ctx context.Context, since *time.Time) ([]*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.ListChangedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("organizations")
	if since != nil {
		sb.Where(sb.GreaterThan("updated_at", *since))
	}
	sb.OrderBy("uuid")

	query, args := sb.Build()
	var orgs []*models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list organizations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}

	return orgs, nil
}

// List returns every organization, uuid ordered.
func (r *Repository) List(ctx context.Context) ([]*models.Organization, error) {
	return r.ListChangedSince(ctx, nil)
}

// Delete removes an organization. References are nulled at write time, in
// the same transaction: jobs keep their row with org_uuid cleared, and
// people lose their featured organization pointer. People and jobs are
// never cascade-deleted by an organization delete.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Delete")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	jobUpdate := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	jobUpdate.Update("jobs")
	jobUpdate.Set(jobUpdate.Assign("org_uuid", nil))
	jobUpdate.Where(jobUpdate.Equal("org_uuid", id))

	query, args := jobUpdate.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to null job references")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete organization")
	}

	personUpdate := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	personUpdate.Update("people")
	personUpdate.Set(personUpdate.Assign("featured_job_organization_uuid", nil))
	personUpdate.Where(personUpdate.Equal("featured_job_organization_uuid", id))

	query, args = personUpdate.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to null featured job references")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete organization")
	}

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("organizations")
	del.Where(del.Equal("uuid", id))

	query, args = del.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete organization")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %s not found", id))
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete organization")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"uuid": id}).Info("Deleted organization")
	return nil
}
