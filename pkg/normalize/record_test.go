package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestNormalizer_Record_Organization(t *testing.T) {
	n := New(nil)

	record := &models.RawRecord{
		Source:         "csv",
		SourceRecordID: "org-1",
		RecordType:     models.RecordTypeOrganization,
		CapturedAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Data: json.RawMessage(`{
			"name": "  Acme   Corp ",
			"homepage_url": "https://www.acme.io/about?ref=x",
			"country_code": "us",
			"categories": "Fintech, SaaS",
			"founded_on": "2014-03",
			"employee_count": "120",
			"total_funding_usd": "1,200,000",
			"status": "Acquired"
		}`),
	}

	got, err := n.Record(record)
	require.NoError(t, err)

	assert.Equal(t, "acme corp", got.String("name"))
	assert.Equal(t, "acme.io", got.String("domain"))
	assert.Equal(t, "US", got.String("country_code"))
	assert.Equal(t, []string{"fintech", "saas"}, got.Tokens("categories"))
	assert.Equal(t, "101-250", got.String("employee_count"))
	assert.Equal(t, "acquired", got.String("status"))

	founded, ok := got.Time("founded_on")
	require.True(t, ok)
	assert.Equal(t, time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC), founded)

	funding, ok := got.Float("total_funding_usd")
	require.True(t, ok)
	assert.Equal(t, 1200000.0, funding)
}

func TestNormalizer_Record_Person(t *testing.T) {
	n := New(nil)

	record := &models.RawRecord{
		Source:         "api",
		SourceRecordID: "p-9",
		RecordType:     models.RecordTypePerson,
		Data:           json.RawMessage(`{"full_name": "Jane O'Malley Jr.", "country": "ie", "region": "Leinster"}`),
	}

	got, err := n.Record(record)
	require.NoError(t, err)

	assert.Equal(t, "jane omalley", got.String("full_name"))
	assert.Equal(t, "jane", got.String("first_name"))
	assert.Equal(t, "IE", got.String("country_code"))
	assert.Equal(t, "leinster", got.String("region"))
}

func TestNormalizer_Record_Job(t *testing.T) {
	n := New([]string{"founder", "co-founder"})

	tests := []struct {
		name      string
		data      string
		isFounder bool
	}{
		{name: "title keyword", data: `{"title": "Co-Founder & CEO", "person_id": "p-1"}`, isFounder: true},
		{name: "job type founder", data: `{"title": "Chief Plant Officer", "job_type": "Founder", "person_id": "p-1"}`, isFounder: true},
		{name: "plain role", data: `{"title": "Staff Engineer", "job_type": "employee", "person_id": "p-1"}`, isFounder: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &models.RawRecord{
				Source:         "csv",
				SourceRecordID: "j-1",
				RecordType:     models.RecordTypeJob,
				Data:           json.RawMessage(tt.data),
			}

			got, err := n.Record(record)
			require.NoError(t, err)

			founder, ok := got.Bool("is_founder")
			require.True(t, ok)
			assert.Equal(t, tt.isFounder, founder)
			assert.Equal(t, "p-1", got.String("person_record_id"))
		})
	}
}

func TestNormalizer_Record_Malformed(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name   string
		record *models.RawRecord
	}{
		{
			name:   "missing source",
			record: &models.RawRecord{SourceRecordID: "x", RecordType: models.RecordTypePerson, Data: json.RawMessage(`{}`)},
		},
		{
			name:   "missing source record id",
			record: &models.RawRecord{Source: "csv", RecordType: models.RecordTypePerson, Data: json.RawMessage(`{}`)},
		},
		{
			name:   "unknown record type",
			record: &models.RawRecord{Source: "csv", SourceRecordID: "x", RecordType: "pet", Data: json.RawMessage(`{}`)},
		},
		{
			name:   "invalid payload",
			record: &models.RawRecord{Source: "csv", SourceRecordID: "x", RecordType: models.RecordTypePerson, Data: json.RawMessage(`{not json`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Record(tt.record)
			require.Error(t, err)

			kind, ok := models.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, models.ErrKindMalformedRecord, kind)
		})
	}
}

func TestNormalizer_Record_LenientDates(t *testing.T) {
	n := New(nil)

	record := &models.RawRecord{
		Source:         "csv",
		SourceRecordID: "org-2",
		RecordType:     models.RecordTypeOrganization,
		Data:           json.RawMessage(`{"name": "Vague Inc", "founded_on": "circa 2010"}`),
	}

	got, err := n.Record(record)
	require.NoError(t, err)

	_, ok := got.Time("founded_on")
	assert.False(t, ok, "unparseable date should be absent, not an error")
}
