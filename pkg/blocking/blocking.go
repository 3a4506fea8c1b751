// Package blocking partitions normalized records into small overlapping
// candidate blocks so pairwise scoring never degenerates into an all-pairs
// comparison.
package blocking

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Block is one candidate group. Records holds indexes into the batch slice
// the block was built from; the same record may appear in several blocks.
type Block struct {
	RecordType models.RecordType
	Key        string
	Records    []int
}

// Build groups records of the same type under cheap keys, in priority
// order: organization domain, person full name plus country, then a
// first-name-token plus region fallback for both types.
func Build(records []*models.NormalizedRecord) []Block {
	groups := map[models.RecordType]map[string][]int{}

	add := func(recordType models.RecordType, key string, idx int) {
		if key == "" {
			return
		}
		if groups[recordType] == nil {
			groups[recordType] = map[string][]int{}
		}
		groups[recordType][key] = append(groups[recordType][key], idx)
	}

	for i, record := range records {
		if record == nil {
			continue
		}
		for _, key := range Keys(record) {
			add(record.RecordType, key, i)
		}
	}

	var blocks []Block
	for recordType, keys := range groups {
		for key, idxs := range keys {
			if len(idxs) < 2 {
				continue
			}
			blocks = append(blocks, Block{RecordType: recordType, Key: key, Records: idxs})
		}
	}

	// Deterministic block order regardless of map iteration.
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].RecordType != blocks[j].RecordType {
			return blocks[i].RecordType < blocks[j].RecordType
		}
		return blocks[i].Key < blocks[j].Key
	})
	return blocks
}

// Keys returns the blocking keys a record lands in.
func Keys(record *models.NormalizedRecord) []string {
	var keys []string

	switch record.RecordType {
	case models.RecordTypeOrganization:
		if domain := record.String("domain"); domain != "" {
			keys = append(keys, "domain:"+domain)
		}
		if key := nameTokenKey(record.String("name"), record.String("region")); key != "" {
			keys = append(keys, key)
		}
	case models.RecordTypePerson:
		name := record.String("full_name")
		if country := record.String("country_code"); name != "" && country != "" {
			keys = append(keys, "name_country:"+name+"|"+country)
		}
		if key := nameTokenKey(name, record.String("region")); key != "" {
			keys = append(keys, key)
		}
	case models.RecordTypeJob:
		// Jobs resolve through their source references, not fuzzy matching.
		if person := record.String("person_record_id"); person != "" {
			keys = append(keys, "job_person:"+person+"|"+record.String("org_record_id")+"|"+record.String("title"))
		}
	}

	return keys
}

// Pairs expands blocks into deduplicated candidate pairs. A pair that
// co-occurs in several blocks is emitted once.
func Pairs(blocks []Block) []models.CandidatePair {
	seen := map[models.CandidatePair]struct{}{}
	var pairs []models.CandidatePair

	for _, block := range blocks {
		for i := 0; i < len(block.Records); i++ {
			for j := i + 1; j < len(block.Records); j++ {
				pair := models.NewCandidatePair(block.Records[i], block.Records[j])
				if _, ok := seen[pair]; ok {
					continue
				}
				seen[pair] = struct{}{}
				pairs = append(pairs, pair)
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

func nameTokenKey(name, region string) string {
	if name == "" || region == "" {
		return ""
	}
	first := strings.SplitN(name, " ", 2)[0]
	if first == "" {
		return ""
	}
	return "token_region:" + first + "|" + region
}
