package consumer

import (
	"context"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/voxelforge/voxelforge-backend/internal/stats"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type stubRecorder struct {
	events []stats.Event
	err    error
}

func (s *stubRecorder) RecordGeneration(ctx context.Context, event stats.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func newTestConsumer(t *testing.T, svc *stubRecorder) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(svc, &pubsub.Subscriber{}, logger.New(logger.Options{ServiceName: "test"}), 0)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func TestConsumerAcksRecordedEvent(t *testing.T) {
	t.Parallel()

	svc := &stubRecorder{}
	consumer := newTestConsumer(t, svc)

	msg := &pubsub.Message{
		ID:   "m-1",
		Data: []byte(`{"generation_id":"gen-1","user_id":"u1","kind":"text-to-3d"}`),
	}
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.GenerationID != "gen-1" || event.UserID != "u1" || event.Kind != "text-to-3d" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestConsumerAcksMalformedJSON(t *testing.T) {
	t.Parallel()

	svc := &stubRecorder{}
	consumer := newTestConsumer(t, svc)

	result := consumer.process(context.Background(), &pubsub.Message{Data: []byte("{not json")})
	if !result.ack || result.nack {
		t.Fatalf("malformed payload must ack, got %+v", result)
	}
	if len(svc.events) != 0 {
		t.Fatalf("expected service not called")
	}
}

func TestConsumerAcksValidationFailure(t *testing.T) {
	t.Parallel()

	svc := &stubRecorder{err: pkgerrors.New(pkgerrors.CodeValidation, "missing user_id")}
	consumer := newTestConsumer(t, svc)

	result := consumer.process(context.Background(), &pubsub.Message{Data: []byte(`{"kind":"x"}`)})
	if !result.ack || result.nack {
		t.Fatalf("validation failure must ack, got %+v", result)
	}
}

func TestConsumerNacksDependencyFailure(t *testing.T) {
	t.Parallel()

	svc := &stubRecorder{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	consumer := newTestConsumer(t, svc)

	result := consumer.process(context.Background(), &pubsub.Message{Data: []byte(`{"user_id":"u1"}`)})
	if !result.nack {
		t.Fatalf("dependency failure must nack, got %+v", result)
	}
}
