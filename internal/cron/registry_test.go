package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	r, err := NewRegistry(namedJob("hold-expiry"), nil, namedJob("outbox-retention"))
	require.NoError(t, err)

	jobs := r.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "hold-expiry", jobs[0].Name())
	require.Equal(t, "outbox-retention", jobs[1].Name())

	jobs[0] = nil
	require.NotNil(t, r.Jobs()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(namedJob("hold-expiry"), namedJob("hold-expiry"))
	require.ErrorContains(t, err, "registered twice")

	var r Registry
	require.Error(t, r.Register(namedJob("")))
	require.NoError(t, r.Register(namedJob("sweep")))
	require.Len(t, r.Jobs(), 1)
}
