// Package registry maps outbox event types to their Pub/Sub topic and payload
// schema, and decodes stored rows before publishing.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type decoder func(json.RawMessage) (any, error)

func schema[T any]() decoder {
	return func(raw json.RawMessage) (any, error) {
		payload := new(T)
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// EventDescriptor is what the publisher needs to know about one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode decoder
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry requires a topic per aggregate: reservation events share
// one topic and listing events another.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topics := map[enums.OutboxAggregateType]string{
		enums.AggregateReservation: cfg.ReservationsTopic,
		enums.AggregateListing:     cfg.ListingsTopic,
	}
	for aggregate, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("%s topic is required", aggregate)
		}
	}

	schemas := map[enums.OutboxEventType]decoder{
		enums.EventReservationCreated:   schema[payloads.ReservationCreatedEvent](),
		enums.EventReservationConfirmed: schema[payloads.ReservationConfirmedEvent](),
		enums.EventReservationCancelled: schema[payloads.ReservationReleasedEvent](),
		enums.EventReservationExpired:   schema[payloads.ReservationReleasedEvent](),
		enums.EventListingDeactivated:   schema[payloads.ListingDeactivatedEvent](),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(schemas))}
	for eventType, decode := range schemas {
		aggregate := eventType.Aggregate()
		reg.entries[eventType] = EventDescriptor{
			EventType:     eventType,
			AggregateType: aggregate,
			Topic:         topics[aggregate],
			decode:        decode,
		}
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is non-retryable: the row will not fix itself.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryablef("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryablef("aggregate mismatch: %s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryablef("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryablef("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryablef("payload missing for %s", event.EventType)
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, nonRetryablef("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

// NonRetryableError tells the publisher to dead-letter instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryablef(format string, args ...any) NonRetryableError {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// IsNonRetryable reports whether err, or anything it wraps, is a
// NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}
