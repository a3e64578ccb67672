package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventTypeProductPublished is emitted once per product created in the CMS.
const EventTypeProductPublished = "PRODUCT_PUBLISHED"

// StreamClient is the subset of the redis client the publisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends publication events to a Redis stream for downstream consumers.
type Publisher struct {
	client StreamClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client StreamClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// Record publishes pub. It satisfies the runner's Recorder interface.
func (p *Publisher) Record(ctx context.Context, pub *models.Publication) error {
	data, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"id":           pub.ID.String(),
			"type":         EventTypeProductPublished,
			"aggregate_id": pub.SKU,
			"run_id":       pub.RunID.String(),
			"timestamp":    strconv.FormatInt(pub.PublishedAt.UnixNano(), 10),
			"data":         string(data),
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"stream", p.stream,
		"entry_id", id,
		"sku", pub.SKU,
	)
	return nil
}
