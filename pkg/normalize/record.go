package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultFounderKeywords classify a job as a founding role when any keyword
// appears in the title or job type, case-insensitive.
var DefaultFounderKeywords = []string{"founder", "co-founder", "cofounder"}

// Normalizer turns raw source records into canonical field maps. It is
// stateless and safe for concurrent use.
type Normalizer struct {
	founderKeywords []string
}

func New(founderKeywords []string) *Normalizer {
	if len(founderKeywords) == 0 {
		founderKeywords = DefaultFounderKeywords
	}
	lowered := make([]string, len(founderKeywords))
	for i, kw := range founderKeywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	return &Normalizer{founderKeywords: lowered}
}

// Record normalizes a single raw record. A missing source identifier,
// unknown record type, or unparseable payload yields a MalformedRecord
// error; every other defect degrades to a nil field.
func (n *Normalizer) Record(record *models.RawRecord) (*models.NormalizedRecord, error) {
	if record.Source == "" || record.SourceRecordID == "" {
		return nil, models.NewMalformedRecord(record.Key(), errors.New("missing source or source_record_id"))
	}
	if !record.RecordType.IsValid() {
		return nil, models.NewMalformedRecord(record.Key(), fmt.Errorf("unknown record type %q", record.RecordType))
	}

	var data map[string]any
	if err := json.Unmarshal(record.Data, &data); err != nil {
		return nil, models.NewMalformedRecord(record.Key(), fmt.Errorf("invalid record payload: %w", err))
	}

	normalized := &models.NormalizedRecord{
		Source:         record.Source,
		SourceRecordID: record.SourceRecordID,
		RecordType:     record.RecordType,
		CapturedAt:     record.CapturedAt,
		Fields:         map[string]any{},
	}

	switch record.RecordType {
	case models.RecordTypeOrganization:
		n.organization(data, normalized.Fields)
	case models.RecordTypePerson:
		n.person(data, normalized.Fields)
	case models.RecordTypeJob:
		n.job(data, normalized.Fields)
	}

	return normalized, nil
}

func (n *Normalizer) organization(data map[string]any, fields map[string]any) {
	setString(fields, "name", CleanString(rawString(data, "name", "company_name")))
	setString(fields, "legal_name", CleanString(rawString(data, "legal_name")))

	homepage := rawString(data, "homepage_url", "website", "url")
	setString(fields, "homepage_url", strings.TrimSpace(strings.ToLower(homepage)))

	domain := Domain(rawString(data, "domain"))
	if domain == "" {
		domain = Domain(homepage)
	}
	setString(fields, "domain", domain)

	setString(fields, "country_code", strings.ToUpper(strings.TrimSpace(rawString(data, "country_code", "country"))))
	setString(fields, "region", CleanString(rawString(data, "region", "state")))
	setString(fields, "city", CleanString(rawString(data, "city")))
	setString(fields, "status", CleanString(rawString(data, "status")))
	setString(fields, "short_description", strings.TrimSpace(rawString(data, "short_description", "description")))
	setString(fields, "employee_count", EmployeeCountRange(rawString(data, "employee_count", "num_employees", "company_size")))

	if tokens := Tokens(firstRaw(data, "categories", "category_list", "industries")); len(tokens) > 0 {
		fields["categories"] = tokens
	}
	if t := Date(rawString(data, "founded_on", "founded_date")); t != nil {
		fields["founded_on"] = *t
	}
	if t := Date(rawString(data, "closed_on", "closed_date")); t != nil {
		fields["closed_on"] = *t
	}
	if f := Float(firstRaw(data, "total_funding_usd", "total_funding")); f != nil {
		fields["total_funding_usd"] = *f
	}
	if f := Float(firstRaw(data, "num_funding_rounds", "funding_rounds")); f != nil {
		fields["num_funding_rounds"] = *f
	}
}

func (n *Normalizer) person(data map[string]any, fields map[string]any) {
	first := CleanName(rawString(data, "first_name"))
	last := CleanName(rawString(data, "last_name"))
	full := CleanName(rawString(data, "full_name", "name"))
	if full == "" {
		full = strings.TrimSpace(first + " " + last)
	}
	if first == "" && full != "" {
		first = strings.SplitN(full, " ", 2)[0]
	}
	setString(fields, "first_name", first)
	setString(fields, "last_name", last)
	setString(fields, "full_name", full)

	setString(fields, "country_code", strings.ToUpper(strings.TrimSpace(rawString(data, "country_code", "country"))))
	setString(fields, "region", CleanString(rawString(data, "region", "state")))
	setString(fields, "city", CleanString(rawString(data, "city")))
	setString(fields, "linkedin_url", strings.TrimSpace(strings.ToLower(rawString(data, "linkedin_url", "linkedin"))))
	setString(fields, "featured_job_title", CleanString(rawString(data, "featured_job_title")))
	setString(fields, "featured_job_organization_id", strings.TrimSpace(rawString(data, "featured_job_organization_id")))
}

func (n *Normalizer) job(data map[string]any, fields map[string]any) {
	title := CleanString(rawString(data, "title", "job_title"))
	jobType := CleanString(rawString(data, "job_type", "type"))
	setString(fields, "title", title)
	setString(fields, "job_type", jobType)
	setString(fields, "person_record_id", strings.TrimSpace(rawString(data, "person_record_id", "person_id")))
	setString(fields, "org_record_id", strings.TrimSpace(rawString(data, "org_record_id", "org_id", "organization_id")))

	fields["is_founder"] = n.isFounder(title, jobType)
	fields["is_current"] = rawBool(data, "is_current")

	if t := Date(rawString(data, "started_on", "start_date")); t != nil {
		fields["started_on"] = *t
	}
	if t := Date(rawString(data, "ended_on", "end_date")); t != nil {
		fields["ended_on"] = *t
	}
}

func (n *Normalizer) isFounder(title, jobType string) bool {
	if jobType == "founder" {
		return true
	}
	for _, kw := range n.founderKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// rawString returns the first non-empty string value among keys.
func rawString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			switch s := v.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					return s
				}
			case float64:
				return fmt.Sprintf("%v", s)
			}
		}
	}
	return ""
}

func firstRaw(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := data[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func rawBool(data map[string]any, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		b := strings.ToLower(strings.TrimSpace(v))
		return b == "true" || b == "yes" || b == "1"
	}
	return false
}

func setString(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
