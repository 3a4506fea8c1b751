package models

import (
	"encoding/json"
	"time"
)

// RecordType is the closed set of entity kinds handled by the pipeline.
type RecordType string

const (
	RecordTypeOrganization RecordType = "organization"
	RecordTypePerson       RecordType = "person"
	RecordTypeJob          RecordType = "job"
)

// IsValid reports whether t is one of the known record types.
func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeOrganization, RecordTypePerson, RecordTypeJob:
		return true
	}
	return false
}

// RawRecord is one captured row from a source feed. Raw records are
// immutable once captured; a newer capture of the same (source,
// source_record_id) supersedes the older one but never mutates it.
type RawRecord struct {
	ID             string          `json:"id" db:"id"`
	Source         string          `json:"source" db:"source"`
	SourceRecordID string          `json:"source_record_id" db:"source_record_id"`
	RecordType     RecordType      `json:"record_type" db:"record_type"`
	CapturedAt     time.Time       `json:"captured_at" db:"captured_at"`
	Data           json.RawMessage `json:"data" db:"data"`
	Fingerprint    string          `json:"fingerprint" db:"fingerprint"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Key returns the stable identity of the underlying source row,
// used for error attribution and supersede lookups.
func (r *RawRecord) Key() string {
	return r.Source + ":" + r.SourceRecordID
}

// CreateRawRecordRequest is the request for capturing a raw record.
type CreateRawRecordRequest struct {
	Source         string          `json:"source" validate:"required"`
	SourceRecordID string          `json:"source_record_id" validate:"required"`
	RecordType     RecordType      `json:"record_type" validate:"required"`
	CapturedAt     time.Time       `json:"captured_at"`
	Data           json.RawMessage `json:"data" validate:"required"`
}

// NormalizedRecord is the in-memory output of the source normalizer:
// canonical field names mapped to cleaned values. Values are one of
// string, float64, bool, time.Time or []string; absent/unparseable
// fields are simply not present.
type NormalizedRecord struct {
	Source         string
	SourceRecordID string
	RecordType     RecordType
	CapturedAt     time.Time
	Fields         map[string]any
}

// Key returns the source identity of the record.
func (n *NormalizedRecord) Key() string {
	return n.Source + ":" + n.SourceRecordID
}

// String returns the string value of a field, or "" if absent.
func (n *NormalizedRecord) String(field string) string {
	s, _ := n.Fields[field].(string)
	return s
}

// Tokens returns the token-set value of a field, or nil if absent.
func (n *NormalizedRecord) Tokens(field string) []string {
	t, _ := n.Fields[field].([]string)
	return t
}

// Float returns the numeric value of a field.
func (n *NormalizedRecord) Float(field string) (float64, bool) {
	f, ok := n.Fields[field].(float64)
	return f, ok
}

// Time returns the time value of a field.
func (n *NormalizedRecord) Time(field string) (time.Time, bool) {
	t, ok := n.Fields[field].(time.Time)
	return t, ok
}

// Bool returns the boolean value of a field.
func (n *NormalizedRecord) Bool(field string) (bool, bool) {
	b, ok := n.Fields[field].(bool)
	return b, ok
}

// SourcePriority defines source trust levels. Higher is more trusted.
type SourcePriority struct {
	Source   string `json:"source"`
	Priority int    `json:"priority"`
}
