package reviewflag

import (
	"context"
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

// Repository persists records held back for manual review.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new review flag repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create flags a record for manual review.
func (r *Repository) Create(ctx context.Context, flag *models.ReviewFlag) (*models.ReviewFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewflag.Repository.Create")
	defer span.End()

	if flag.ID == "" {
		flag.ID = uuid.New().String()
	}
	flag.CreatedAt = time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto("review_flags")
	sb.Cols("id", "source", "source_record_id", "record_type", "candidate_uuids", "reason", "created_at")
	sb.Values(flag.ID, flag.Source, flag.SourceRecordID, flag.RecordType, flag.CandidateUUIDs, flag.Reason, flag.CreatedAt)
	sb.OnConflictDoNothing()

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create review flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review flag")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source":           flag.Source,
		"source_record_id": flag.SourceRecordID,
		"reason":           flag.Reason,
	}).Warn("Flagged record for manual review")
	return flag, nil
}

// List returns review flags, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.ReviewFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewflag.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "source", "source_record_id", "record_type", "candidate_uuids", "reason", "created_at")
	sb.From("review_flags")
	sb.OrderBy("created_at DESC", "id")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var flags []*models.ReviewFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list review flags")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review flags")
	}

	return flags, nil
}

// Delete clears a resolved flag.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "reviewflag.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("review_flags")
	del.Where(del.Equal("id", id))

	query, args := del.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete review flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete review flag")
	}

	return nil
}
