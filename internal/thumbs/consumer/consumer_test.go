package consumer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/voxelforge/voxelforge-backend/internal/gcsevent"
	"github.com/voxelforge/voxelforge-backend/internal/thumbs"
	pkgerrors "github.com/voxelforge/voxelforge-backend/pkg/errors"
	"github.com/voxelforge/voxelforge-backend/pkg/logger"
)

type stubGenerator struct {
	calls []thumbs.Object
	err   error
}

func (s *stubGenerator) ProcessObject(ctx context.Context, obj thumbs.Object) error {
	s.calls = append(s.calls, obj)
	return s.err
}

func buildMessage(name, eventType string) *pubsub.Message {
	data, _ := json.Marshal(gcsevent.Payload{
		Name:        name,
		Bucket:      "vf-assets",
		ContentType: "image/png",
	})
	return &pubsub.Message{
		ID: "m-1",
		Attributes: map[string]string{
			"eventType":     eventType,
			"payloadFormat": gcsevent.PayloadFormatJSONAPI,
			"bucketId":      "vf-assets",
		},
		Data: []byte(base64.StdEncoding.EncodeToString(data)),
	}
}

func newTestConsumer(t *testing.T, gen *stubGenerator) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(gen, &pubsub.Subscriber{}, logger.New(logger.Options{ServiceName: "test"}), 0)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func TestConsumerAcksFinalizeEvent(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	consumer := newTestConsumer(t, gen)

	result := consumer.process(context.Background(), buildMessage("resources/images/u1/a.png", gcsevent.ObjectFinalizeEvent))
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected generator called once, got %d", len(gen.calls))
	}
	obj := gen.calls[0]
	if obj.Name != "resources/images/u1/a.png" || obj.Bucket != "vf-assets" || obj.ContentType != "image/png" {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestConsumerSkipsNonFinalizeEvents(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	consumer := newTestConsumer(t, gen)

	result := consumer.process(context.Background(), buildMessage("resources/images/u1/a.png", "OBJECT_DELETE"))
	if !result.ack {
		t.Fatalf("expected ack for non-finalize event")
	}
	if len(gen.calls) != 0 {
		t.Fatalf("expected generator not called")
	}
}

func TestConsumerAcksMissingObjectName(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{}
	consumer := newTestConsumer(t, gen)

	result := consumer.process(context.Background(), buildMessage("", gcsevent.ObjectFinalizeEvent))
	if !result.ack || result.nack {
		t.Fatalf("expected ack for empty name, got %+v", result)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("expected generator not called")
	}
}

func TestConsumerNacksTransientFailure(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: pkgerrors.New(pkgerrors.CodeDependency, "storage unavailable")}
	consumer := newTestConsumer(t, gen)

	result := consumer.process(context.Background(), buildMessage("resources/images/u1/a.png", gcsevent.ObjectFinalizeEvent))
	if !result.nack {
		t.Fatalf("transient failure must nack, got %+v", result)
	}
}

func TestConsumerAcksPermanentFailure(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: pkgerrors.New(pkgerrors.CodeValidation, "undecodable image")}
	consumer := newTestConsumer(t, gen)

	result := consumer.process(context.Background(), buildMessage("resources/images/u1/a.png", gcsevent.ObjectFinalizeEvent))
	if !result.ack || result.nack {
		t.Fatalf("permanent failure must ack, got %+v", result)
	}
}
