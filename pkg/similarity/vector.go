package similarity

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// Vector is an entity's feature vector: raw numeric fields plus
// categorical token sets. Numeric values are min-max normalized against
// corpus stats at scoring time, never here.
type Vector struct {
	EntityUUID uuid.UUID
	Kind       models.RecordType
	Numeric    map[string]float64
	TokenSets  map[string][]string
}

// OrganizationVector builds an organization's feature vector. now anchors
// the lifespan of still-operating companies.
func OrganizationVector(org *models.Organization, now time.Time) *Vector {
	v := &Vector{
		EntityUUID: org.UUID,
		Kind:       models.RecordTypeOrganization,
		Numeric:    map[string]float64{},
		TokenSets:  map[string][]string{},
	}

	if org.TotalFundingUSD != nil {
		v.Numeric["total_funding_usd"] = *org.TotalFundingUSD
	}
	if org.NumFundingRounds != nil {
		v.Numeric["num_funding_rounds"] = float64(*org.NumFundingRounds)
	}
	if org.EmployeeCount != nil {
		if mid, ok := normalize.EmployeeCountMidpoint(*org.EmployeeCount); ok {
			v.Numeric["employee_count"] = mid
		}
	}
	if org.FoundedOn != nil {
		end := now.UTC()
		if org.ClosedOn != nil {
			end = *org.ClosedOn
		}
		v.Numeric["lifespan_days"] = end.Sub(*org.FoundedOn).Hours() / 24
	}
	if len(org.Categories) > 0 {
		v.TokenSets["categories"] = org.Categories
	}

	return v
}

// PersonVector builds a person's feature vector from their founder
// features. People without a feature row have no vector.
func PersonVector(features *models.FounderFeatures) *Vector {
	v := &Vector{
		EntityUUID: features.PersonUUID,
		Kind:       models.RecordTypePerson,
		Numeric: map[string]float64{
			"total_companies_founded": float64(features.TotalCompaniesFounded),
			"total_funding_raised":    features.TotalFundingRaised,
			"exits_count":             float64(features.ExitsCount),
			"leadership_roles_count":  float64(features.LeadershipRolesCount),
		},
		TokenSets: map[string][]string{},
	}

	if features.AvgCompanyLifespanDays != nil {
		v.Numeric["avg_company_lifespan_days"] = *features.AvgCompanyLifespanDays
	}
	if len(features.CompanyCategories) > 0 {
		v.TokenSets["company_categories"] = features.CompanyCategories
	}
	if len(features.JobTitles) > 0 {
		v.TokenSets["job_titles"] = features.JobTitles
	}

	return v
}
