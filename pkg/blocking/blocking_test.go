package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func orgRecord(source, id string, fields map[string]any) *models.NormalizedRecord {
	return &models.NormalizedRecord{
		Source:         source,
		SourceRecordID: id,
		RecordType:     models.RecordTypeOrganization,
		Fields:         fields,
	}
}

func personRecord(source, id string, fields map[string]any) *models.NormalizedRecord {
	return &models.NormalizedRecord{
		Source:         source,
		SourceRecordID: id,
		RecordType:     models.RecordTypePerson,
		Fields:         fields,
	}
}

func TestBuild_OrganizationsBlockByDomain(t *testing.T) {
	records := []*models.NormalizedRecord{
		orgRecord("csv", "1", map[string]any{"name": "acme corp", "domain": "acme.io"}),
		orgRecord("api", "2", map[string]any{"name": "acme corporation", "domain": "acme.io"}),
		orgRecord("csv", "3", map[string]any{"name": "other co", "domain": "other.com"}),
	}

	blocks := Build(records)

	require.Len(t, blocks, 1, "singleton blocks are dropped")
	assert.Equal(t, "domain:acme.io", blocks[0].Key)
	assert.Equal(t, []int{0, 1}, blocks[0].Records)
}

func TestBuild_PeopleBlockByNameCountryAndFallback(t *testing.T) {
	records := []*models.NormalizedRecord{
		personRecord("csv", "1", map[string]any{"full_name": "jane doe", "country_code": "US", "region": "california"}),
		personRecord("api", "2", map[string]any{"full_name": "jane doe", "country_code": "US"}),
		personRecord("api", "3", map[string]any{"full_name": "jane smith", "region": "california"}),
	}

	blocks := Build(records)

	keys := make([]string, len(blocks))
	for i, b := range blocks {
		keys[i] = b.Key
	}
	assert.Contains(t, keys, "name_country:jane doe|US")
	assert.Contains(t, keys, "token_region:jane|california")
}

func TestBuild_TypesNeverMix(t *testing.T) {
	records := []*models.NormalizedRecord{
		orgRecord("csv", "1", map[string]any{"name": "jane doe", "region": "california"}),
		personRecord("csv", "2", map[string]any{"full_name": "jane doe", "region": "california"}),
		personRecord("api", "3", map[string]any{"full_name": "jane roe", "region": "california"}),
	}

	blocks := Build(records)

	for _, block := range blocks {
		assert.Equal(t, models.RecordTypePerson, block.RecordType)
		assert.NotContains(t, block.Records, 0)
	}
}

func TestPairs_DeduplicatesAcrossBlocks(t *testing.T) {
	// Records 0 and 1 co-occur in both blocks.
	blocks := []Block{
		{RecordType: models.RecordTypePerson, Key: "name_country:jane doe|US", Records: []int{0, 1}},
		{RecordType: models.RecordTypePerson, Key: "token_region:jane|california", Records: []int{0, 1, 2}},
	}

	pairs := Pairs(blocks)

	assert.Equal(t, []models.CandidatePair{
		{A: 0, B: 1},
		{A: 0, B: 2},
		{A: 1, B: 2},
	}, pairs)
}
