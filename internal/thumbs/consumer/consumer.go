package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/voxelforge/voxelforge-backend/internal/gcsevent"
	"github.com/voxelforge/voxelforge-backend/internal/thumbs"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type generator interface {
	ProcessObject(ctx context.Context, obj thumbs.Object) error
}

// Consumer feeds GCS OBJECT_FINALIZE notifications into the thumbnail generator.
type Consumer struct {
	generator      generator
	subscription   *pubsub.Subscriber
	logg           *logger.Logger
	handlerTimeout time.Duration
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(gen generator, subscription *pubsub.Subscriber, logg *logger.Logger, handlerTimeout time.Duration) (*Consumer, error) {
	if gen == nil {
		return nil, errors.New("thumbnail generator is required")
	}
	if subscription == nil {
		return nil, errors.New("thumbnail subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if handlerTimeout <= 0 {
		handlerTimeout = 9 * time.Minute
	}
	return &Consumer{
		generator:      gen,
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
	attrs := gcsevent.ParseAttributes(msg.Attributes)
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": attrs.EventType,
		"bucket":     attrs.BucketID,
	})

	if attrs.EventType != gcsevent.ObjectFinalizeEvent {
		c.logg.Info(logCtx, "skipping non-finalize event")
		return processResult{ack: true}
	}
	if attrs.PayloadFormat != gcsevent.PayloadFormatJSONAPI {
		c.logg.Warn(logCtx, "unsupported payload format")
		return processResult{ack: true}
	}

	payload, err := gcsevent.Unmarshal(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode finalize payload", err)
		return processResult{ack: true}
	}
	if strings.TrimSpace(payload.Name) == "" {
		c.logg.Error(logCtx, "payload missing object name", fmt.Errorf("empty name"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"object": payload.Name,
	})

	handlerCtx, cancel := context.WithTimeout(logCtx, c.handlerTimeout)
	defer cancel()

	obj := thumbs.Object{
		Bucket:      payload.Bucket,
		Name:        payload.Name,
		ContentType: payload.ContentType,
	}
	if err := c.generator.ProcessObject(handlerCtx, obj); err != nil {
		c.logg.Error(logCtx, "thumbnail generation failed", err)
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
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return false
}
