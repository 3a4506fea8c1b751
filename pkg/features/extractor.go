// Package features derives founder-level feature rows from a person's
// canonical job history and the organizations those jobs link to.
package features

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Extractor computes founder features. It is pure aside from the clock,
// which is injectable for tests.
type Extractor struct {
	founderKeywords []string
	now             func() time.Time
}

func NewExtractor(founderKeywords []string) *Extractor {
	if len(founderKeywords) == 0 {
		founderKeywords = []string{"founder", "co-founder", "cofounder"}
	}
	lowered := make([]string, len(founderKeywords))
	for i, kw := range founderKeywords {
		lowered[i] = strings.ToLower(strings.TrimSpace(kw))
	}
	return &Extractor{founderKeywords: lowered, now: time.Now}
}

// IsFounderRole classifies a job as founding by its flag, job type, or a
// title keyword, case-insensitive.
func (e *Extractor) IsFounderRole(job *models.Job) bool {
	if job.IsFounder {
		return true
	}
	if job.JobType != nil && strings.EqualFold(*job.JobType, "founder") {
		return true
	}
	if job.Title == nil {
		return false
	}
	title := strings.ToLower(*job.Title)
	for _, kw := range e.founderKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// FounderFeatures aggregates a person's jobs and linked organizations.
// ok is false when the person holds no founder-type job; such people get
// no feature row. Missing inputs degrade to null fields, never errors.
func (e *Extractor) FounderFeatures(
	person *models.Person,
	jobs []*models.Job,
	orgs map[uuid.UUID]*models.Organization,
) (*models.FounderFeatures, bool) {
	// Started-on order, nulls last, so aggregation is reproducible.
	sorted := make([]*models.Job, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].StartedOn, sorted[j].StartedOn
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return si.Before(*sj)
	})

	features := &models.FounderFeatures{
		PersonUUID: person.UUID,
		ComputedAt: e.now().UTC(),
	}

	titleSet := map[string]struct{}{}
	categorySet := map[string]struct{}{}
	foundedOrgs := map[uuid.UUID]struct{}{}
	var lifespans []float64
	hasFounderJob := false

	for _, job := range sorted {
		if job.Title != nil {
			title := strings.ToLower(strings.TrimSpace(*job.Title))
			if title != "" {
				titleSet[title] = struct{}{}
			}
		}
		if job.JobType != nil && strings.EqualFold(*job.JobType, "executive") {
			features.LeadershipRolesCount++
		}

		if !e.IsFounderRole(job) {
			continue
		}
		hasFounderJob = true
		features.TotalCompaniesFounded++

		if job.OrgUUID == nil {
			continue
		}
		org, ok := orgs[*job.OrgUUID]
		if !ok {
			continue
		}
		if _, seen := foundedOrgs[org.UUID]; seen {
			// Two founding jobs at the same org count the jobs but
			// aggregate the org once.
			features.TotalCompaniesFounded--
			continue
		}
		foundedOrgs[org.UUID] = struct{}{}

		for _, category := range org.Categories {
			categorySet[category] = struct{}{}
		}
		if org.TotalFundingUSD != nil {
			features.TotalFundingRaised += *org.TotalFundingUSD
		}
		if e.isExit(org) {
			features.ExitsCount++
		}
		if org.FoundedOn != nil {
			end := e.now().UTC()
			if org.ClosedOn != nil {
				end = *org.ClosedOn
			}
			lifespans = append(lifespans, end.Sub(*org.FoundedOn).Hours()/24)
		}
	}

	if !hasFounderJob {
		return nil, false
	}

	features.JobTitles = sortedSet(titleSet)
	features.CompanyCategories = sortedSet(categorySet)

	if len(lifespans) > 0 {
		var sum float64
		for _, d := range lifespans {
			sum += d
		}
		avg := sum / float64(len(lifespans))
		features.AvgCompanyLifespanDays = &avg
	}

	return features, true
}

func (e *Extractor) isExit(org *models.Organization) bool {
	if org.Status == nil {
		return false
	}
	switch strings.ToLower(*org.Status) {
	case "acquired", "closed_via_acquisition":
		return true
	}
	return false
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
