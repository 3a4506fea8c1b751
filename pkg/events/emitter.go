// Package events handles event emission for entity lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes entity lifecycle events for downstream consumers
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EntityMerged emits an entity merged event after a multi-record merge
func (e *Emitter) EntityMerged(ctx context.Context, recordType models.RecordType, entityUUID uuid.UUID, sources string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EntityMerged")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:  "entity.merged",
		EntityUUID: entityUUID.String(),
		EntityType: string(recordType),
		Sources:    sources,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.merged event")
		return err
	}

	return nil
}

// EntityDeleted emits an entity deleted event
func (e *Emitter) EntityDeleted(ctx context.Context, recordType models.RecordType, entityUUID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EntityDeleted")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:  "entity.deleted",
		EntityUUID: entityUUID.String(),
		EntityType: string(recordType),
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.deleted event")
		return err
	}

	return nil
}
