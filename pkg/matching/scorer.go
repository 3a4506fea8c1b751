package matching

import "strings"

// Scorer provides the string and set comparison primitives used by the
// pair matcher. Stateless and safe for concurrent use.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// ExactMatch returns 1.0 for an exact match, 0.0 otherwise.
func (s *Scorer) ExactMatch(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

// Levenshtein returns a normalized edit-distance similarity in [0,1].
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings.
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// TokenJaccard returns the Jaccard similarity of two token sets.
func (s *Scorer) TokenJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, token := range a {
		setA[token] = struct{}{}
	}

	intersection := 0
	setB := make(map[string]struct{}, len(b))
	for _, token := range b {
		if _, dup := setB[token]; dup {
			continue
		}
		setB[token] = struct{}{}
		if _, ok := setA[token]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// NameSimilarity compares two names as the better of normalized edit
// distance and token-set overlap, so both misspellings and word
// reorderings score well.
func (s *Scorer) NameSimilarity(a, b string) float64 {
	lev := s.Levenshtein(a, b)
	jaccard := s.TokenJaccard(strings.Fields(a), strings.Fields(b))
	if jaccard > lev {
		return jaccard
	}
	return lev
}

// WeightedScore averages field scores by weight, normalizing by the total
// weight of the fields that were actually scored.
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}
