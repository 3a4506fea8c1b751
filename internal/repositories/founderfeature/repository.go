package founderfeature

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var columns = []string{
	"person_uuid", "total_companies_founded", "company_categories",
	"avg_company_lifespan_days", "total_funding_raised", "exits_count",
	"leadership_roles_count", "job_titles", "computed_at",
}

// Repository handles derived founder feature rows. The table is fully
// recomputable from canonical entities and never hand-edited, so upserts
// simply replace the previous computation.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new founder feature repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert replaces a person's feature row with the latest computation.
func (r *Repository) Upsert(ctx context.Context, features *models.FounderFeatures) error {
	ctx, span := tracing.StartSpan(ctx, "founderfeature.Repository.Upsert")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto("founder_features")
	sb.Cols(columns...)
	sb.Values(features.PersonUUID, features.TotalCompaniesFounded, features.CompanyCategories,
		features.AvgCompanyLifespanDays, features.TotalFundingRaised, features.ExitsCount,
		features.LeadershipRolesCount, features.JobTitles, features.ComputedAt)

	ub := sb.OnConflict("person_uuid")
	ub.Set(
		ub.Assign("total_companies_founded", database.Excluded("total_companies_founded")),
		ub.Assign("company_categories", database.Excluded("company_categories")),
		ub.Assign("avg_company_lifespan_days", database.Excluded("avg_company_lifespan_days")),
		ub.Assign("total_funding_raised", database.Excluded("total_funding_raised")),
		ub.Assign("exits_count", database.Excluded("exits_count")),
		ub.Assign("leadership_roles_count", database.Excluded("leadership_roles_count")),
		ub.Assign("job_titles", database.Excluded("job_titles")),
		ub.Assign("computed_at", database.Excluded("computed_at")),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert founder features")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert founder features")
	}

	return nil
}

// Get retrieves a person's feature row
func (r *Repository) Get(ctx context.Context, personID uuid.UUID) (*models.FounderFeatures, error) {
	ctx, span := tracing.StartSpan(ctx, "founderfeature.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("founder_features")
	sb.Where(sb.Equal("person_uuid", personID))

	query, args := sb.Build()
	var features models.FounderFeatures
	if err := r.db.GetContext(ctx, &features, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("founder features for %s not found", personID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get founder features")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get founder features")
	}

	return &features, nil
}

// List returns every feature row, ordered by person uuid.
func (r *Repository) List(ctx context.Context) ([]*models.FounderFeatures, error) {
	ctx, span := tracing.StartSpan(ctx, "founderfeature.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("founder_features")
	sb.OrderBy("person_uuid")

	query, args := sb.Build()
	var features []*models.FounderFeatures
	if err := r.db.SelectContext(ctx, &features, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list founder features")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list founder features")
	}

	return features, nil
}

// DeleteByPerson removes a person's feature row, for people who no longer
// hold any founder-type job.
func (r *Repository) DeleteByPerson(ctx context.Context, personID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "founderfeature.Repository.DeleteByPerson")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("founder_features")
	del.Where(del.Equal("person_uuid", personID))

	query, args := del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete founder features")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete founder features")
	}

	return nil
}
