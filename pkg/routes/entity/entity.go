// Package entity exposes canonical entity reads, deletes, raw record
// ingestion, and the manual review queue.
package entity

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// OrganizationRepo is the organization persistence surface the handler needs.
type OrganizationRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PersonRepo is the person persistence surface the handler needs.
type PersonRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Person, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobRepo is the job persistence surface the handler needs.
type JobRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FounderFeatureRepo reads derived founder features.
type FounderFeatureRepo interface {
	Get(ctx context.Context, personID uuid.UUID) (*models.FounderFeatures, error)
}

// ReviewFlagRepo manages the manual review queue.
type ReviewFlagRepo interface {
	List(ctx context.Context, limit int) ([]*models.ReviewFlag, error)
	Delete(ctx context.Context, id string) error
}

// RawRecordRepo ingests raw source records.
type RawRecordRepo interface {
	Create(ctx context.Context, req *models.CreateRawRecordRequest) (*models.RawRecord, error)
}

// EntitySourceRepo clears source-row mappings once their entity is gone.
type EntitySourceRepo interface {
	DeleteByEntity(ctx context.Context, entityUUID uuid.UUID) error
}

// Emitter publishes entity lifecycle events. May be nil.
type Emitter interface {
	EntityDeleted(ctx context.Context, recordType models.RecordType, entityUUID uuid.UUID) error
}

// Handler handles entity API endpoints
type Handler struct {
	orgs     OrganizationRepo
	people   PersonRepo
	jobs     JobRepo
	features FounderFeatureRepo
	flags    ReviewFlagRepo
	records  RawRecordRepo
	sources  EntitySourceRepo
	emitter  Emitter
	logger   ectologger.Logger
}

// NewHandler creates a new entity handler
func NewHandler(
	orgs OrganizationRepo,
	people PersonRepo,
	jobs JobRepo,
	features FounderFeatureRepo,
	flags ReviewFlagRepo,
	records RawRecordRepo,
	sources EntitySourceRepo,
	emitter Emitter,
	logger ectologger.Logger,
) *Handler {
	return &Handler{
		orgs:     orgs,
		people:   people,
		jobs:     jobs,
		features: features,
		flags:    flags,
		records:  records,
		sources:  sources,
		emitter:  emitter,
		logger:   logger,
	}
}

// Register registers entity routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/records", h.CreateRawRecord)

	g.GET("/organizations/:id", h.GetOrganization)
	g.DELETE("/organizations/:id", h.DeleteOrganization)

	g.GET("/people/:id", h.GetPerson)
	g.GET("/people/:id/jobs", h.ListPersonJobs)
	g.GET("/people/:id/features", h.GetFounderFeatures)
	g.DELETE("/people/:id", h.DeletePerson)

	g.GET("/jobs/:id", h.GetJob)
	g.DELETE("/jobs/:id", h.DeleteJob)

	g.GET("/review-flags", h.ListReviewFlags)
	g.DELETE("/review-flags/:id", h.ResolveReviewFlag)
}

// CreateRawRecord ingests one raw source record. Replays of an identical
// payload are absorbed by the fingerprint, so ingestion is idempotent.
func (h *Handler) CreateRawRecord(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.CreateRawRecord")
	defer span.End()

	var req models.CreateRawRecordRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.RecordType.IsValid() {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown record type %q", req.RecordType)
	}

	record, err := h.records.Create(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, record)
}

// GetOrganization returns a canonical organization by uuid
func (h *Handler) GetOrganization(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.GetOrganization")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	org, err := h.orgs.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, org)
}

// DeleteOrganization removes an organization. Jobs keep their rows with
// the organization reference cleared; people lose their featured
// organization pointer.
func (h *Handler) DeleteOrganization(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.DeleteOrganization")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.orgs.Delete(ctx, id); err != nil {
		return err
	}
	h.clearSourceMappings(ctx, id)
	h.emitDeleted(ctx, models.RecordTypeOrganization, id)

	return c.NoContent(http.StatusNoContent)
}

// GetPerson returns a canonical person by uuid
func (h *Handler) GetPerson(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.GetPerson")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	person, err := h.people.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, person)
}

// ListPersonJobs returns a person's jobs, start date ascending
func (h *Handler) ListPersonJobs(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.ListPersonJobs")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	jobs, err := h.jobs.ListByPerson(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jobs)
}

// GetFounderFeatures returns the derived founder features for a person
func (h *Handler) GetFounderFeatures(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.GetFounderFeatures")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	features, err := h.features.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, features)
}

// DeletePerson removes a person along with their jobs and founder features
func (h *Handler) DeletePerson(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.DeletePerson")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	// The person's jobs go with them, so capture the job uuids before the
	// cascade to clear their source mappings too.
	jobs, err := h.jobs.ListByPerson(ctx, id)
	if err != nil {
		return err
	}

	if err := h.people.Delete(ctx, id); err != nil {
		return err
	}
	h.clearSourceMappings(ctx, id)
	for _, job := range jobs {
		h.clearSourceMappings(ctx, job.UUID)
	}
	h.emitDeleted(ctx, models.RecordTypePerson, id)

	return c.NoContent(http.StatusNoContent)
}

// GetJob returns a canonical job by uuid
func (h *Handler) GetJob(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.GetJob")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, job)
}

// DeleteJob removes a single job
func (h *Handler) DeleteJob(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.DeleteJob")
	defer span.End()

	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.jobs.Delete(ctx, id); err != nil {
		return err
	}
	h.clearSourceMappings(ctx, id)
	h.emitDeleted(ctx, models.RecordTypeJob, id)

	return c.NoContent(http.StatusNoContent)
}

// ListReviewFlags returns pending manual review flags, newest first
func (h *Handler) ListReviewFlags(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.ListReviewFlags")
	defer span.End()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 50
	}

	flags, err := h.flags.List(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, flags)
}

// ResolveReviewFlag removes a review flag once a human has resolved it
func (h *Handler) ResolveReviewFlag(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Handler.ResolveReviewFlag")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "missing id")
	}

	if err := h.flags.Delete(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// clearSourceMappings removes the entity's source-row mappings. A failure
// only leaves stale mappings, which the next resolution pass re-points.
func (h *Handler) clearSourceMappings(ctx context.Context, id uuid.UUID) {
	if err := h.sources.DeleteByEntity(ctx, id); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to clear source mappings")
	}
}

func (h *Handler) emitDeleted(ctx context.Context, recordType models.RecordType, id uuid.UUID) {
	if h.emitter == nil {
		return
	}
	if err := h.emitter.EntityDeleted(ctx, recordType, id); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to publish delete event")
	}
}

func parseUUID(c echo.Context, param string) (uuid.UUID, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return uuid.Nil, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a valid UUID", param)
	}

	return id, nil
}
