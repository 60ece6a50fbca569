// Package pubsub wraps the Pub/Sub v2 client used to fan reservation and
// listing events out to other services.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
)

// Client owns one long-lived Publisher per topic. Publishers batch in the
// background, so they are created once and stopped on Close.
type Client struct {
	client *pubsub.Client
	topics topicSet

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     bool
}

// NewClient connects and fails when any configured topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := newTopicSet(project, cfg)
	if len(topics.resources) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, topics: topics, publishers: map[string]*pubsub.Publisher{}}

	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics.names()), "pubsub client initialized")
	}
	return c, nil
}

// Publisher returns the shared publisher for a topic id or full resource
// name, or nil when the name is blank or the client is closed.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	resource := c.topics.resource(name)
	if resource == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if p, ok := c.publishers[resource]; ok {
		return p
	}
	p := c.client.Publisher(resource)
	c.publishers[resource] = p
	return p
}

// SearchPublisher feeds the search indexer.
func (c *Client) SearchPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.topics.search)
}

// Ping checks every configured topic and reports all that are missing.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	var errs error
	for _, resource := range c.topics.resources {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: resource})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			errs = multierr.Append(errs, fmt.Errorf("topic %q does not exist", resource))
		default:
			errs = multierr.Append(errs, fmt.Errorf("checking topic %q: %w", resource, err))
		}
	}
	return errs
}

// Close flushes pending messages and releases the connection. Repeat calls
// are no-ops.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	publishers := c.publishers
	c.publishers = nil
	c.mu.Unlock()

	for _, p := range publishers {
		p.Stop()
	}
	return c.client.Close()
}

// topicSet resolves configured topic ids against the project.
type topicSet struct {
	project   string
	search    string
	resources []string
}

func newTopicSet(project string, cfg config.PubSubConfig) topicSet {
	set := topicSet{project: project, search: strings.TrimSpace(cfg.SearchTopic)}
	seen := map[string]bool{}
	for _, name := range []string{cfg.ReservationsTopic, cfg.ListingsTopic, cfg.SearchTopic} {
		resource := set.resource(name)
		if resource == "" || seen[resource] {
			continue
		}
		seen[resource] = true
		set.resources = append(set.resources, resource)
	}
	return set
}

func (s topicSet) resource(name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/"):
		return n
	case s.project == "":
		return ""
	}
	return "projects/" + s.project + "/topics/" + n
}

func (s topicSet) names() []string {
	out := make([]string, 0, len(s.resources))
	for _, resource := range s.resources {
		out = append(out, resource[strings.LastIndex(resource, "/")+1:])
	}
	return out
}

// clientOptions prefers inline credentials over a key file; with neither set
// the client falls back to application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}
