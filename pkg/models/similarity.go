package models

import "github.com/google/uuid"

// FactorContribution names one weighted factor's share of a similarity score.
type FactorContribution struct {
	Factor       string  `json:"factor"`
	Contribution float64 `json:"contribution"`
}

// SimilarEntity is one ranked result of a similarity query.
type SimilarEntity struct {
	EntityUUID uuid.UUID            `json:"entity_uuid"`
	Score      float64              `json:"score"`
	TopFactors []FactorContribution `json:"top_factors"`
}

// SimilarityWeights maps factor name to weight. Weights are normalized to
// sum to 1 before scoring.
type SimilarityWeights map[string]float64

// SimilarityResult is the full response for a similarity query.
type SimilarityResult struct {
	EntityUUID uuid.UUID       `json:"entity_uuid"`
	K          int             `json:"k"`
	Results    []SimilarEntity `json:"results"`
}
