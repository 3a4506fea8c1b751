package similarity

// CorpusStats holds per-field min-max bounds over the current corpus.
// Bounds are computed per batch and passed to the engine explicitly, so a
// score is always attributable to a known corpus state.
type CorpusStats struct {
	Min map[string]float64
	Max map[string]float64
}

// ComputeStats scans the vectors and records per-field bounds.
func ComputeStats(vectors []*Vector) *CorpusStats {
	stats := &CorpusStats{Min: map[string]float64{}, Max: map[string]float64{}}
	for _, v := range vectors {
		if v == nil {
			continue
		}
		for field, value := range v.Numeric {
			lo, seen := stats.Min[field]
			if !seen || value < lo {
				stats.Min[field] = value
			}
			hi, seen := stats.Max[field]
			if !seen || value > hi {
				stats.Max[field] = value
			}
		}
	}
	return stats
}

// Normalize min-max scales a value into [0,1]. A degenerate field where
// every corpus value is identical normalizes to 0.
func (s *CorpusStats) Normalize(field string, value float64) float64 {
	lo, okLo := s.Min[field]
	hi, okHi := s.Max[field]
	if !okLo || !okHi || hi == lo {
		return 0
	}
	n := (value - lo) / (hi - lo)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}
