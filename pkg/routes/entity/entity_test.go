package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeOrgRepo struct {
	orgs    map[uuid.UUID]*models.Organization
	deleted []uuid.UUID
}

func (f *fakeOrgRepo) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "organization not found")
	}
	return org, nil
}

func (f *fakeOrgRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.orgs, id)
	return nil
}

type fakePersonRepo struct {
	people  map[uuid.UUID]*models.Person
	deleted []uuid.UUID
}

func (f *fakePersonRepo) Get(_ context.Context, id uuid.UUID) (*models.Person, error) {
	person, ok := f.people[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "person not found")
	}
	return person, nil
}

func (f *fakePersonRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.people, id)
	return nil
}

type fakeJobRepo struct {
	jobs map[uuid.UUID]*models.Job
}

func (f *fakeJobRepo) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return job, nil
}

func (f *fakeJobRepo) ListByPerson(_ context.Context, personID uuid.UUID) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, job := range f.jobs {
		if job.PersonUUID == personID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (f *fakeJobRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.jobs, id)
	return nil
}

type fakeFeatureRepo struct {
	features map[uuid.UUID]*models.FounderFeatures
}

func (f *fakeFeatureRepo) Get(_ context.Context, personID uuid.UUID) (*models.FounderFeatures, error) {
	features, ok := f.features[personID]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "founder features not found")
	}
	return features, nil
}

type fakeFlagRepo struct {
	flags   []*models.ReviewFlag
	deleted []string
}

func (f *fakeFlagRepo) List(_ context.Context, limit int) ([]*models.ReviewFlag, error) {
	if limit > len(f.flags) {
		limit = len(f.flags)
	}
	return f.flags[:limit], nil
}

func (f *fakeFlagRepo) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRecordRepo struct {
	created []*models.CreateRawRecordRequest
}

func (f *fakeRecordRepo) Create(_ context.Context, req *models.CreateRawRecordRequest) (*models.RawRecord, error) {
	f.created = append(f.created, req)
	return &models.RawRecord{
		ID:             uuid.New().String(),
		Source:         req.Source,
		SourceRecordID: req.SourceRecordID,
		RecordType:     req.RecordType,
		Data:           req.Data,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

type fakeSourceRepo struct {
	cleared []uuid.UUID
}

func (f *fakeSourceRepo) DeleteByEntity(_ context.Context, entityUUID uuid.UUID) error {
	f.cleared = append(f.cleared, entityUUID)
	return nil
}

type fakeEmitter struct {
	deleted []uuid.UUID
}

func (f *fakeEmitter) EntityDeleted(_ context.Context, _ models.RecordType, entityUUID uuid.UUID) error {
	f.deleted = append(f.deleted, entityUUID)
	return nil
}

func strPtr(s string) *string { return &s }

type testHarness struct {
	e       *echo.Echo
	orgs    *fakeOrgRepo
	people  *fakePersonRepo
	jobs    *fakeJobRepo
	flags   *fakeFlagRepo
	records *fakeRecordRepo
	sources *fakeSourceRepo
	emitter *fakeEmitter
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	h := &testHarness{
		e:       echo.New(),
		orgs:    &fakeOrgRepo{orgs: map[uuid.UUID]*models.Organization{}},
		people:  &fakePersonRepo{people: map[uuid.UUID]*models.Person{}},
		jobs:    &fakeJobRepo{jobs: map[uuid.UUID]*models.Job{}},
		flags:   &fakeFlagRepo{},
		records: &fakeRecordRepo{},
		sources: &fakeSourceRepo{},
		emitter: &fakeEmitter{},
	}
	h.e.HTTPErrorHandler = middleware.Error(logger)

	handler := NewHandler(
		h.orgs,
		h.people,
		h.jobs,
		&fakeFeatureRepo{features: map[uuid.UUID]*models.FounderFeatures{}},
		h.flags,
		h.records,
		h.sources,
		h.emitter,
		logger,
	)
	handler.Register(h.e.Group("/api/v1"))
	return h
}

func (h *testHarness) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRawRecord(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/records", map[string]any{
		"source":           "csv",
		"source_record_id": "o1",
		"record_type":      "organization",
		"data":             map[string]any{"name": "Acme"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, h.records.created, 1)
	assert.Equal(t, "csv", h.records.created[0].Source)
}

func TestCreateRawRecord_MissingFields(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/records", map[string]any{
		"source": "csv",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.records.created)
}

func TestCreateRawRecord_UnknownRecordType(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/records", map[string]any{
		"source":           "csv",
		"source_record_id": "o1",
		"record_type":      "spaceship",
		"data":             map[string]any{"name": "Acme"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrganization(t *testing.T) {
	h := newTestHarness(t)
	org := &models.Organization{UUID: uuid.New(), Name: strPtr("acme")}
	h.orgs.orgs[org.UUID] = org

	rec := h.request(t, http.MethodGet, "/api/v1/organizations/"+org.UUID.String(), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.Organization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, org.UUID, got.UUID)
	require.NotNil(t, got.Name)
	assert.Equal(t, "acme", *got.Name)
}

func TestGetOrganization_NotFound(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/organizations/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrganization_BadUUID(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/organizations/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePerson_PublishesEvent(t *testing.T) {
	h := newTestHarness(t)
	person := &models.Person{UUID: uuid.New(), Name: strPtr("jane doe")}
	h.people.people[person.UUID] = person

	rec := h.request(t, http.MethodDelete, "/api/v1/people/"+person.UUID.String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{person.UUID}, h.people.deleted)
	assert.Equal(t, []uuid.UUID{person.UUID}, h.emitter.deleted)
}

func TestDeletePerson_ClearsSourceMappings(t *testing.T) {
	h := newTestHarness(t)
	person := &models.Person{UUID: uuid.New(), Name: strPtr("jane doe")}
	h.people.people[person.UUID] = person
	job := &models.Job{UUID: uuid.New(), PersonUUID: person.UUID}
	h.jobs.jobs[job.UUID] = job

	rec := h.request(t, http.MethodDelete, "/api/v1/people/"+person.UUID.String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.ElementsMatch(t, []uuid.UUID{person.UUID, job.UUID}, h.sources.cleared)
}

func TestDeleteOrganization_ClearsSourceMappings(t *testing.T) {
	h := newTestHarness(t)
	org := &models.Organization{UUID: uuid.New(), Name: strPtr("acme")}
	h.orgs.orgs[org.UUID] = org

	rec := h.request(t, http.MethodDelete, "/api/v1/organizations/"+org.UUID.String(), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{org.UUID}, h.sources.cleared)
}

func TestListPersonJobs(t *testing.T) {
	h := newTestHarness(t)
	personID := uuid.New()
	h.jobs.jobs[uuid.New()] = &models.Job{UUID: uuid.New(), PersonUUID: personID}
	h.jobs.jobs[uuid.New()] = &models.Job{UUID: uuid.New(), PersonUUID: uuid.New()}

	rec := h.request(t, http.MethodGet, fmt.Sprintf("/api/v1/people/%s/jobs", personID), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var jobs []*models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)
}

func TestListReviewFlags_DefaultLimit(t *testing.T) {
	h := newTestHarness(t)
	h.flags.flags = []*models.ReviewFlag{
		{ID: "f1", Source: "csv", SourceRecordID: "o1", RecordType: models.RecordTypeOrganization},
		{ID: "f2", Source: "api", SourceRecordID: "org-2", RecordType: models.RecordTypeOrganization},
	}

	rec := h.request(t, http.MethodGet, "/api/v1/review-flags", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var flags []*models.ReviewFlag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	assert.Len(t, flags, 2)
}

func TestResolveReviewFlag(t *testing.T) {
	h := newTestHarness(t)

	rec := h.request(t, http.MethodDelete, "/api/v1/review-flags/f1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"f1"}, h.flags.deleted)
}
