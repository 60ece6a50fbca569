package enums

// OutboxAggregateType names the entity an outbox event is about; it becomes
// the aggregate_type column and a Pub/Sub attribute.
type OutboxAggregateType string

const (
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateListing     OutboxAggregateType = "listing"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateReservation, AggregateListing}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType is the event_type column and selects the Pub/Sub topic.
type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationConfirmed OutboxEventType = "reservation_confirmed"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventReservationExpired   OutboxEventType = "reservation_expired"
	EventListingDeactivated   OutboxEventType = "listing_deactivated"
)

var outboxEventTypes = set[OutboxEventType]{
	EventReservationCreated,
	EventReservationConfirmed,
	EventReservationCancelled,
	EventReservationExpired,
	EventListingDeactivated,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

// Aggregate reports which aggregate type an event belongs to.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	if e == EventListingDeactivated {
		return AggregateListing
	}
	return AggregateReservation
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}
