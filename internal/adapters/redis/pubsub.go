package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/esg-pipeline/internal/domain/model"
)

// DefaultStatusChannel carries analysis status updates between processes.
const DefaultStatusChannel = "esgpipeline:analysis-status"

// StatusRelay publishes status updates to a Redis channel and feeds updates
// received on it to a local sink, so observers connected to any process see
// updates produced by every process.
type StatusRelay struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewStatusRelay creates a relay on channel.
func NewStatusRelay(client redis.UniversalClient, channel string, logger *slog.Logger) *StatusRelay {
	if channel == "" {
		channel = DefaultStatusChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusRelay{client: client, channel: channel, logger: logger.With("component", "status_relay")}
}

// Publish sends update to every subscribed process. Failures are logged and
// dropped.
func (r *StatusRelay) Publish(ctx context.Context, update model.StatusUpdate) {
	b, err := json.Marshal(update)
	if err != nil {
		r.logger.ErrorContext(ctx, "encode status update", "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		r.logger.WarnContext(ctx, "publish status update failed",
			"analysis_id", update.AnalysisID, "error", err)
	}
}

// Run subscribes to the channel and passes each decoded update to deliver
// until ctx is done.
func (r *StatusRelay) Run(ctx context.Context, deliver func(model.StatusUpdate)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		_ = sub.Close()
	}()

	// Wait for the subscription to be confirmed so Publish calls made after
	// Run starts are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.InfoContext(ctx, "status relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update model.StatusUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				r.logger.WarnContext(ctx, "drop malformed status update", "error", err)
				continue
			}
			deliver(update)
		}
	}
}
