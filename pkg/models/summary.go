package models

import "sync"

const maxErrorSamples = 25

// Summary reports the outcome of a pipeline run. Counts are safe for
// concurrent updates from worker goroutines.
type Summary struct {
	mu sync.Mutex

	Processed int `json:"processed"`
	Merged    int `json:"merged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`

	// ErrorCounts breaks Errors down by kind.
	ErrorCounts map[ErrorKind]int `json:"error_counts"`
	// ErrorSamples holds the first few failing record keys per kind, for
	// log and API visibility without retaining the whole failure set.
	ErrorSamples map[ErrorKind][]string `json:"error_samples"`
}

func NewSummary() *Summary {
	return &Summary{
		ErrorCounts:  map[ErrorKind]int{},
		ErrorSamples: map[ErrorKind][]string{},
	}
}

func (s *Summary) AddProcessed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed += n
}

func (s *Summary) AddMerged(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Merged += n
}

func (s *Summary) AddSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped += n
}

// AddError counts a record-level failure under its kind and keeps a bounded
// sample of record keys.
func (s *Summary) AddError(kind ErrorKind, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
	s.ErrorCounts[kind]++
	if len(s.ErrorSamples[kind]) < maxErrorSamples {
		s.ErrorSamples[kind] = append(s.ErrorSamples[kind], recordID)
	}
}
