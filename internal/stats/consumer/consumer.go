package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/voxelforge/voxelforge-backend/internal/stats"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type recorder interface {
	RecordGeneration(ctx context.Context, event stats.Event) error
}

// Consumer applies generation-created events to per-user counters.
type Consumer struct {
	service        recorder
	subscription   *pubsub.Subscriber
	logg           *logger.Logger
	handlerTimeout time.Duration
}

// NewConsumer constructs a consumer that watches the generations subscription.
func NewConsumer(service recorder, subscription *pubsub.Subscriber, logg *logger.Logger, handlerTimeout time.Duration) (*Consumer, error) {
	if service == nil {
		return nil, errors.New("stats service is required")
	}
	if subscription == nil {
		return nil, errors.New("generations subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if handlerTimeout <= 0 {
		handlerTimeout = time.Minute
	}
	return &Consumer{
		service:        service,
		subscription:   subscription,
		logg:           logg,
		handlerTimeout: handlerTimeout,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var event stats.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode generation event", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"generation_id": event.GenerationID,
		"user_id":       event.UserID,
	})

	handlerCtx, cancel := context.WithTimeout(logCtx, c.handlerTimeout)
	defer cancel()

	if err := c.service.RecordGeneration(handlerCtx, event); err != nil {
		c.logg.Error(logCtx, "failed to record generation", err)
		if isTransient(err) {
			return processResult{nack: true}
		}
		return processResult{ack: true}
	}
	return processResult{ack: true}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return false
}
