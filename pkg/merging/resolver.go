// Package merging clusters accepted match pairs into canonical entities and
// resolves field-level conflicts with a deterministic policy, so re-running
// resolution on unchanged input never drifts.
package merging

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Resolver owns clustering and field conflict resolution.
type Resolver struct {
	trust map[string]int
}

func NewResolver(priorities []models.SourcePriority) *Resolver {
	trust := make(map[string]int, len(priorities))
	for _, p := range priorities {
		trust[p.Source] = p.Priority
	}
	return &Resolver{trust: trust}
}

// Clusters unions accepted pairs into connected components. Every record,
// matched or not, lands in exactly one cluster; existing maps record keys
// to already-assigned canonical uuids so identity survives across runs.
// Clusters whose members map to more than one distinct canonical entity
// are returned separately as ambiguous and must not be merged.
func (r *Resolver) Clusters(
	records []*models.NormalizedRecord,
	matches []models.MatchScore,
	existing map[string]uuid.UUID,
) (clusters []models.MatchCluster, ambiguous []*models.AmbiguousMergeError) {
	uf := newUnionFind(len(records))
	for _, match := range matches {
		uf.union(match.Pair.A, match.Pair.B)
	}

	components := map[int][]int{}
	for i, record := range records {
		if record == nil {
			continue
		}
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := components[root]
		sort.Ints(members)

		cluster := models.MatchCluster{
			RecordType: records[members[0]].RecordType,
			Records:    members,
		}

		seen := map[uuid.UUID]struct{}{}
		for _, idx := range members {
			id, ok := existing[records[idx].Key()]
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			cluster.ExistingUUIDs = append(cluster.ExistingUUIDs, id)
		}
		sort.Slice(cluster.ExistingUUIDs, func(i, j int) bool {
			return cluster.ExistingUUIDs[i].String() < cluster.ExistingUUIDs[j].String()
		})

		if len(cluster.ExistingUUIDs) > 1 {
			ambiguous = append(ambiguous, &models.AmbiguousMergeError{
				RecordID:       records[members[0]].Key(),
				RecordType:     cluster.RecordType,
				CandidateUUIDs: cluster.ExistingUUIDs,
			})
			continue
		}

		clusters = append(clusters, cluster)
	}

	return clusters, ambiguous
}

// ResolveFields merges the members' fields into one canonical value set.
// Per field, candidates are ranked: non-null only, then highest source
// trust, then latest capture, then lexicographically smallest rendering.
// The policy is a total order, so the result is independent of member order.
func (r *Resolver) ResolveFields(members []*models.NormalizedRecord) map[string]any {
	fieldNames := map[string]struct{}{}
	for _, member := range members {
		for name := range member.Fields {
			fieldNames[name] = struct{}{}
		}
	}

	resolved := make(map[string]any, len(fieldNames))
	for name := range fieldNames {
		if value, ok := r.resolveField(name, members); ok {
			resolved[name] = value
		}
	}
	return resolved
}

type fieldCandidate struct {
	value    any
	record   *models.NormalizedRecord
	priority int
}

func (r *Resolver) resolveField(name string, members []*models.NormalizedRecord) (any, bool) {
	var candidates []fieldCandidate
	for _, member := range members {
		value, ok := member.Fields[name]
		if !ok || value == nil {
			continue
		}
		candidates = append(candidates, fieldCandidate{
			value:    value,
			record:   member,
			priority: r.trust[member.Source],
		})
	}
	if len(candidates) == 0 {
		return nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		ci, cj := candidates[i].record.CapturedAt, candidates[j].record.CapturedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return valueKey(candidates[i].value) < valueKey(candidates[j].value)
	})

	return candidates[0].value, true
}

// Provenance summarizes which sources contributed to a cluster, as the
// sorted distinct source names joined with "+".
func (r *Resolver) Provenance(members []*models.NormalizedRecord) string {
	seen := map[string]struct{}{}
	var sources []string
	for _, member := range members {
		if _, ok := seen[member.Source]; ok {
			continue
		}
		seen[member.Source] = struct{}{}
		sources = append(sources, member.Source)
	}
	sort.Strings(sources)
	return strings.Join(sources, "+")
}

// valueKey renders a field value into a stable comparable string.
func valueKey(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
