package rawrecord

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles raw record captures. Captures are immutable: a newer
// capture of the same source row supersedes older ones but never mutates
// them.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new raw record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create captures a raw record. Re-submitting an identical payload for the
// same source row is a no-op, detected by fingerprint.
func (r *Repository) Create(ctx context.Context, req *models.CreateRawRecordRequest) (*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.Create")
	defer span.End()

	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	record := &models.RawRecord{
		ID:             uuid.New().String(),
		Source:         req.Source,
		SourceRecordID: req.SourceRecordID,
		RecordType:     req.RecordType,
		CapturedAt:     capturedAt,
		Data:           req.Data,
		Fingerprint:    fingerprint.FromJSON(req.Data),
		CreatedAt:      time.Now().UTC(),
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("raw_records")
	sb.Cols("id", "source", "source_record_id", "record_type", "captured_at", "data", "fingerprint", "created_at")
	data := database.JSONB[json.RawMessage]{Data: record.Data}
	sb.Values(record.ID, record.Source, record.SourceRecordID, record.RecordType, record.CapturedAt, data, record.Fingerprint, record.CreatedAt)
	sb.OnConflictDoNothing()

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create raw record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create raw record")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source":           record.Source,
		"source_record_id": record.SourceRecordID,
		"record_type":      record.RecordType,
	}).Debug("Captured raw record")
	return record, nil
}

// ListChangedSince returns the latest capture of every source row captured
// after the watermark. A nil watermark returns the full corpus.
func (r *Repository) ListChangedSince(ctx context.Context, since *time.Time) ([]*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "rawrecord.Repository.ListChangedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT ON (source, source_record_id) id", "source", "source_record_id", "record_type", "captured_at", "data", "fingerprint", "created_at")
	sb.From("raw_records")
	if since != nil {
		sb.Where(sb.GreaterThan("captured_at", *since))
	}
	sb.OrderBy("source", "source_record_id", "captured_at DESC")

	query, args := sb.Build()
	var records []*models.RawRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list raw records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list raw records")
	}

	return records, nil
}
