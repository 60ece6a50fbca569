// Package searchindex hands listing removals to the semantic search indexer.
package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	actionRemove    = "remove"
	attrAction      = "action"
	attrListingID   = "listing_id"
	attrContentType = "content_type"
)

// Remover drops a listing from the search index.
type Remover interface {
	RemoveListing(ctx context.Context, listingID uuid.UUID) error
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Command is the message body consumed by the indexer.
type Command struct {
	Action      string    `json:"action"`
	ListingID   uuid.UUID `json:"listing_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// PubSubRemover publishes removal commands on the search topic.
type PubSubRemover struct {
	pub  publisher
	logg *logger.Logger
	now  func() time.Time
}

// NewPubSubRemover wraps a topic publisher.
func NewPubSubRemover(p *gcppubsub.Publisher, logg *logger.Logger) (*PubSubRemover, error) {
	if p == nil {
		return nil, errors.New("search publisher required")
	}
	return newPubSubRemover(&gcpPublisher{Publisher: p}, logg), nil
}

func newPubSubRemover(pub publisher, logg *logger.Logger) *PubSubRemover {
	return &PubSubRemover{pub: pub, logg: logg, now: time.Now}
}

func (r *PubSubRemover) RemoveListing(ctx context.Context, listingID uuid.UUID) error {
	if listingID == uuid.Nil {
		return errors.New("listing id required")
	}
	body, err := json.Marshal(Command{
		Action:      actionRemove,
		ListingID:   listingID,
		RequestedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode search command: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			attrAction:      actionRemove,
			attrListingID:   listingID.String(),
			attrContentType: "application/json",
		},
	}
	serverID, err := r.pub.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish search removal: %w", err)
	}

	if r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"listing_id":        listingID.String(),
			"pubsub_message_id": serverID,
		})
		r.logg.Info(ctx, "listing removal sent to search index")
	}
	return nil
}

// LogRemover is used when no search topic is configured.
type LogRemover struct {
	logg *logger.Logger
}

func NewLogRemover(logg *logger.Logger) *LogRemover {
	return &LogRemover{logg: logg}
}

func (r *LogRemover) RemoveListing(ctx context.Context, listingID uuid.UUID) error {
	if r.logg != nil {
		r.logg.Warn(r.logg.WithListingID(ctx, listingID.String()), "search index not configured; skipping listing removal")
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
