package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Entity is the closed variant over the canonical entity kinds.
type Entity interface {
	EntityUUID() uuid.UUID
	Kind() RecordType
}

// Organization is the canonical merged record for a company.
type Organization struct {
	UUID             uuid.UUID      `json:"uuid" db:"uuid"`
	Name             *string        `json:"name,omitempty" db:"name"`
	LegalName        *string        `json:"legal_name,omitempty" db:"legal_name"`
	Domain           *string        `json:"domain,omitempty" db:"domain"`
	HomepageURL      *string        `json:"homepage_url,omitempty" db:"homepage_url"`
	CountryCode      *string        `json:"country_code,omitempty" db:"country_code"`
	Region           *string        `json:"region,omitempty" db:"region"`
	City             *string        `json:"city,omitempty" db:"city"`
	Status           *string        `json:"status,omitempty" db:"status"`
	ShortDescription *string        `json:"short_description,omitempty" db:"short_description"`
	Categories       pq.StringArray `json:"categories,omitempty" db:"categories"`
	EmployeeCount    *string        `json:"employee_count,omitempty" db:"employee_count"`
	FoundedOn        *time.Time     `json:"founded_on,omitempty" db:"founded_on"`
	ClosedOn         *time.Time     `json:"closed_on,omitempty" db:"closed_on"`
	TotalFundingUSD  *float64       `json:"total_funding_usd,omitempty" db:"total_funding_usd"`
	NumFundingRounds *int           `json:"num_funding_rounds,omitempty" db:"num_funding_rounds"`
	Sources          string         `json:"sources" db:"sources"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
	LastProcessedAt  *time.Time     `json:"last_processed_at,omitempty" db:"last_processed_at"`
	Version          int            `json:"version" db:"version"`
}

func (o *Organization) EntityUUID() uuid.UUID { return o.UUID }
func (o *Organization) Kind() RecordType      { return RecordTypeOrganization }

// Person is the canonical merged record for an individual.
type Person struct {
	UUID                        uuid.UUID  `json:"uuid" db:"uuid"`
	Name                        *string    `json:"name,omitempty" db:"name"`
	FirstName                   *string    `json:"first_name,omitempty" db:"first_name"`
	LastName                    *string    `json:"last_name,omitempty" db:"last_name"`
	Gender                      *string    `json:"gender,omitempty" db:"gender"`
	CountryCode                 *string    `json:"country_code,omitempty" db:"country_code"`
	Region                      *string    `json:"region,omitempty" db:"region"`
	City                        *string    `json:"city,omitempty" db:"city"`
	LinkedinURL                 *string    `json:"linkedin_url,omitempty" db:"linkedin_url"`
	FeaturedJobOrganizationUUID *uuid.UUID `json:"featured_job_organization_uuid,omitempty" db:"featured_job_organization_uuid"`
	FeaturedJobTitle            *string    `json:"featured_job_title,omitempty" db:"featured_job_title"`
	Sources                     string     `json:"sources" db:"sources"`
	CreatedAt                   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at" db:"updated_at"`
	LastProcessedAt             *time.Time `json:"last_processed_at,omitempty" db:"last_processed_at"`
	Version                     int        `json:"version" db:"version"`
}

func (p *Person) EntityUUID() uuid.UUID { return p.UUID }
func (p *Person) Kind() RecordType      { return RecordTypePerson }

// Job is the canonical merged record for one employment. Every job
// references exactly one person; the organization side is optional and
// nulled when the organization is deleted.
type Job struct {
	UUID       uuid.UUID  `json:"uuid" db:"uuid"`
	PersonUUID uuid.UUID  `json:"person_uuid" db:"person_uuid"`
	OrgUUID    *uuid.UUID `json:"org_uuid,omitempty" db:"org_uuid"`
	Title      *string    `json:"title,omitempty" db:"title"`
	JobType    *string    `json:"job_type,omitempty" db:"job_type"`
	IsFounder  bool       `json:"is_founder" db:"is_founder"`
	IsCurrent  bool       `json:"is_current" db:"is_current"`
	StartedOn  *time.Time `json:"started_on,omitempty" db:"started_on"`
	EndedOn    *time.Time `json:"ended_on,omitempty" db:"ended_on"`
	Sources    string     `json:"sources" db:"sources"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	Version    int        `json:"version" db:"version"`
}

func (j *Job) EntityUUID() uuid.UUID { return j.UUID }
func (j *Job) Kind() RecordType      { return RecordTypeJob }

// FounderFeatures is the derived feature row for a person with at least
// one founder-type job. Fully recomputable from canonical entities.
type FounderFeatures struct {
	PersonUUID             uuid.UUID      `json:"person_uuid" db:"person_uuid"`
	TotalCompaniesFounded  int            `json:"total_companies_founded" db:"total_companies_founded"`
	CompanyCategories      pq.StringArray `json:"company_categories" db:"company_categories"`
	AvgCompanyLifespanDays *float64       `json:"avg_company_lifespan_days,omitempty" db:"avg_company_lifespan_days"`
	TotalFundingRaised     float64        `json:"total_funding_raised" db:"total_funding_raised"`
	ExitsCount             int            `json:"exits_count" db:"exits_count"`
	LeadershipRolesCount   int            `json:"leadership_roles_count" db:"leadership_roles_count"`
	JobTitles              pq.StringArray `json:"job_titles" db:"job_titles"`
	ComputedAt             time.Time      `json:"computed_at" db:"computed_at"`
}

// ReviewFlag records a raw record that matched two distinct canonical
// entities above threshold. Such records are never auto-merged.
type ReviewFlag struct {
	ID             string         `json:"id" db:"id"`
	Source         string         `json:"source" db:"source"`
	SourceRecordID string         `json:"source_record_id" db:"source_record_id"`
	RecordType     RecordType     `json:"record_type" db:"record_type"`
	CandidateUUIDs pq.StringArray `json:"candidate_uuids" db:"candidate_uuids"`
	Reason         string         `json:"reason" db:"reason"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
