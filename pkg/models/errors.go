package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind classifies record-level pipeline errors. Record-level errors
// never abort a batch; they are counted and attributed in the run summary.
type ErrorKind string

const (
	// ErrKindMalformedRecord marks unusable raw input. The record is
	// skipped and the batch continues.
	ErrKindMalformedRecord ErrorKind = "malformed_record"
	// ErrKindAmbiguousMerge marks a record matching two distinct existing
	// canonical entities above threshold. Nothing is merged; the record is
	// flagged for manual review.
	ErrKindAmbiguousMerge ErrorKind = "ambiguous_merge"
	// ErrKindStoreWriteConflict marks a concurrent upsert collision. The
	// write is retried with the field-resolution policy re-applied.
	ErrKindStoreWriteConflict ErrorKind = "store_write_conflict"
	// ErrKindStoreFailure marks a non-conflict store error, such as a
	// failed insert or read. The cluster is skipped for the run.
	ErrKindStoreFailure ErrorKind = "store_failure"
	// ErrKindFeatureGap marks insufficient data for a derived feature. The
	// feature field becomes null; this is informational, not a failure.
	ErrKindFeatureGap ErrorKind = "feature_computation_gap"
)

// RecordError is a pipeline error attributable to a single source record.
type RecordError struct {
	Kind     ErrorKind
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: record %s: %v", e.Kind, e.RecordID, e.Err)
	}
	return fmt.Sprintf("%s: record %s", e.Kind, e.RecordID)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NewMalformedRecord builds a MalformedRecord error for the given record key.
func NewMalformedRecord(recordID string, err error) *RecordError {
	return &RecordError{Kind: ErrKindMalformedRecord, RecordID: recordID, Err: err}
}

// AmbiguousMergeError carries the distinct canonical entities a record
// matched, so the review flag can reference them.
type AmbiguousMergeError struct {
	RecordID       string
	RecordType     RecordType
	CandidateUUIDs []uuid.UUID
}

func (e *AmbiguousMergeError) Error() string {
	return fmt.Sprintf("%s: record %s matched %d distinct canonical entities", ErrKindAmbiguousMerge, e.RecordID, len(e.CandidateUUIDs))
}

// ErrStoreWriteConflict signals a versioned upsert collision.
var ErrStoreWriteConflict = errors.New("store write conflict")

// KindOf classifies err into an ErrorKind, defaulting to malformed record
// attribution only when the error is record-scoped.
func KindOf(err error) (ErrorKind, bool) {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	var ae *AmbiguousMergeError
	if errors.As(err, &ae) {
		return ErrKindAmbiguousMerge, true
	}
	if errors.Is(err, ErrStoreWriteConflict) {
		return ErrKindStoreWriteConflict, true
	}
	return "", false
}
