package models

import "github.com/google/uuid"

// CandidatePair is one deduplicated pair of normalized records proposed
// by the blocking index. A and B index into the batch's record slice,
// with A < B.
type CandidatePair struct {
	A int
	B int
}

// NewCandidatePair orders the two indexes so the pair is comparable
// regardless of which block produced it.
func NewCandidatePair(a, b int) CandidatePair {
	if a > b {
		a, b = b, a
	}
	return CandidatePair{A: a, B: b}
}

// MatchScore is the scorer's verdict on a candidate pair.
type MatchScore struct {
	Pair        CandidatePair
	Score       float64
	FieldScores map[string]float64
}

// MatchCluster is a transient grouping of records believed to denote one
// canonical entity. It exists only during a resolution pass and is
// discarded after merge.
type MatchCluster struct {
	RecordType RecordType
	// Records indexes into the batch's normalized record slice.
	Records []int
	// ExistingUUIDs are the canonical uuids already mapped to any member,
	// in deterministic (sorted) order. Zero or one entry after a clean
	// merge; more than one signals an ambiguous merge.
	ExistingUUIDs []uuid.UUID
}

// EntitySource maps a source record to its canonical entity, keeping
// identity stable across pipeline runs.
type EntitySource struct {
	Source         string     `json:"source" db:"source"`
	SourceRecordID string     `json:"source_record_id" db:"source_record_id"`
	RecordType     RecordType `json:"record_type" db:"record_type"`
	EntityUUID     uuid.UUID  `json:"entity_uuid" db:"entity_uuid"`
}
