package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
)

func TestTopicSetResolvesAndDeduplicates(t *testing.T) {
	set := newTopicSet("proj", config.PubSubConfig{
		ReservationsTopic: "bb-reservation-events",
		ListingsTopic:     " ",
		SearchTopic:       "projects/proj/topics/bb-reservation-events",
	})

	assert.Equal(t, []string{"projects/proj/topics/bb-reservation-events"}, set.resources)
	assert.Equal(t, []string{"bb-reservation-events"}, set.names())
}

func TestTopicSetResource(t *testing.T) {
	set := topicSet{project: "proj"}
	assert.Equal(t, "projects/proj/topics/bb-search-index", set.resource("bb-search-index"))
	assert.Equal(t, "projects/other/topics/bb-listing-events", set.resource("projects/other/topics/bb-listing-events"))
	assert.Empty(t, set.resource("  "))
	assert.Empty(t, topicSet{}.resource("x"), "no project means no resource")
}

func TestNewClientRejectsMissingProjectOrTopics(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{ReservationsTopic: "a"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("x"))
	assert.Nil(t, c.SearchPublisher())
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestClientOptionsCredentials(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{ProjectID: "p"}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}); len(opts) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}); len(opts) != 1 {
		t.Fatalf("expected file credentials option, got %d", len(opts))
	}
}
