package main

import (
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// backoff doubles the wait after each failed batch, capped at maxBackoff.
type backoff struct {
	base    time.Duration
	current time.Duration
	jitter  func() time.Duration
}

func newBackoff(base time.Duration) backoff {
	return backoff{
		base:    base,
		current: base,
		jitter: func() time.Duration {
			return time.Duration(rand.Int64N(int64(jitterWindow)))
		},
	}
}

func (b *backoff) fail() time.Duration {
	b.current *= 2
	if b.current > maxBackoff {
		b.current = maxBackoff
	}
	if b.current <= 0 {
		b.current = b.base
	}
	return b.current + b.jitter()
}

func (b *backoff) idle() time.Duration {
	return b.base + b.jitter()
}

func (b *backoff) reset() {
	b.current = b.base
}
