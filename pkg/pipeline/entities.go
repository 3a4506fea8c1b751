package pipeline

import (
	"time"

	"github.com/lib/pq"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Field application copies resolved cluster fields onto a canonical
// entity. Only fields the resolver produced are assigned, so reprocessing
// an unchanged cluster rewrites the same values.

func applyOrganization(org *models.Organization, fields map[string]any) {
	org.Name = strField(fields, "name")
	org.LegalName = strField(fields, "legal_name")
	org.Domain = strField(fields, "domain")
	org.HomepageURL = strField(fields, "homepage_url")
	org.CountryCode = strField(fields, "country_code")
	org.Region = strField(fields, "region")
	org.City = strField(fields, "city")
	org.Status = strField(fields, "status")
	org.ShortDescription = strField(fields, "short_description")
	org.EmployeeCount = strField(fields, "employee_count")
	org.Categories = tokensField(fields, "categories")
	org.FoundedOn = timeField(fields, "founded_on")
	org.ClosedOn = timeField(fields, "closed_on")
	org.TotalFundingUSD = floatField(fields, "total_funding_usd")
	org.NumFundingRounds = intField(fields, "num_funding_rounds")
}

func applyPerson(person *models.Person, fields map[string]any) {
	person.Name = strField(fields, "full_name")
	person.FirstName = strField(fields, "first_name")
	person.LastName = strField(fields, "last_name")
	person.CountryCode = strField(fields, "country_code")
	person.Region = strField(fields, "region")
	person.City = strField(fields, "city")
	person.LinkedinURL = strField(fields, "linkedin_url")
	person.FeaturedJobTitle = strField(fields, "featured_job_title")
}

func applyJob(job *models.Job, fields map[string]any) {
	job.Title = strField(fields, "title")
	job.JobType = strField(fields, "job_type")
	job.StartedOn = timeField(fields, "started_on")
	job.EndedOn = timeField(fields, "ended_on")
	if founder, ok := fields["is_founder"].(bool); ok {
		job.IsFounder = founder
	}
	if current, ok := fields["is_current"].(bool); ok {
		job.IsCurrent = current
	}
}

func strField(fields map[string]any, name string) *string {
	if s, ok := fields[name].(string); ok && s != "" {
		return &s
	}
	return nil
}

func timeField(fields map[string]any, name string) *time.Time {
	if t, ok := fields[name].(time.Time); ok {
		return &t
	}
	return nil
}

func floatField(fields map[string]any, name string) *float64 {
	if f, ok := fields[name].(float64); ok {
		return &f
	}
	return nil
}

func intField(fields map[string]any, name string) *int {
	if f, ok := fields[name].(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}

func tokensField(fields map[string]any, name string) pq.StringArray {
	if t, ok := fields[name].([]string); ok && len(t) > 0 {
		return pq.StringArray(t)
	}
	return nil
}
