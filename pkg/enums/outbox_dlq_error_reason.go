package enums

// OutboxDLQErrorReason records why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	// every publish attempt failed transiently
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// no topic, bad envelope or a permanent Pub/Sub status
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
