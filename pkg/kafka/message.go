package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage is a consumed Kafka message plus parsed metadata
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	RawRecord *models.CreateRawRecordRequest
}

// ParseRawRecord decodes the message body into a raw record ingestion
// request. CapturedAt defaults to the broker timestamp when the payload
// omits it.
func (m *IncomingMessage) ParseRawRecord() error {
	var req models.CreateRawRecordRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		return fmt.Errorf("invalid raw record payload: %w", err)
	}
	if req.Source == "" || req.SourceRecordID == "" {
		return fmt.Errorf("raw record missing source identifiers")
	}
	if !req.RecordType.IsValid() {
		return fmt.Errorf("unknown record type %q", req.RecordType)
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = m.Timestamp
	}

	m.RawRecord = &req
	return nil
}
