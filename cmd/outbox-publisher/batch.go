package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/registry"
)

// processBatch claims up to batchSize rows and settles each one: published,
// scheduled for retry, or dead-lettered. It reports whether any row was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.ClaimBatch(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.settle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 {
		s.metrics.ObserveBatch(claimed)
	}
	return claimed > 0, err
}

// settle only returns an error when the row state could not be written.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, "", enums.OutboxDLQReasonNonRetryable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = s.logg.WithFields(ctx, eventFields(event, resolved))

	pubErr := s.publish(ctx, event, resolved)
	switch {
	case pubErr == nil:
		if err := s.repo.MarkPublished(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Delivered(string(event.EventType), metrics.DeliveryPublished)
		s.logg.Info(ctx, "outbox event published")
		return nil
	case registry.IsNonRetryable(pubErr):
		return s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonNonRetryable, pubErr)
	case event.FinalAttempt(s.maxAttempts):
		return s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	if err := s.repo.RecordFailure(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	s.metrics.Delivered(string(event.EventType), metrics.DeliveryRetry)
	retryCtx := s.logg.WithFields(ctx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         pubErr.Error(),
	})
	s.logg.Warn(retryCtx, "outbox publish failed; will retry")
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	fields := map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"error_reason": reason,
		"error":        cause.Error(),
	}
	if topic != "" {
		fields["topic"] = topic
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")

	if err := s.dlq.InsertTx(tx, models.DeadLetter(event, reason, cause, time.Now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.Retire(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Delivered(string(event.EventType), metrics.DeliveryDeadLettered)
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, message(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// message carries the stored envelope untouched; attributes let subscribers
// filter without decoding the body.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"topic":          resolved.Descriptor.Topic,
	}
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
	}
	return fields
}
