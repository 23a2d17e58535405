package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/prayer/internal/events"
)

// Publisher receives decoded change events.
type Publisher interface {
	Publish(events.EntryCreated)
}

// NotifyHandler forwards entry.created messages to a Publisher. Other event types are ignored.
type NotifyHandler struct {
	publisher Publisher
}

// NewNotifyHandler constructs a NotifyHandler.
func NewNotifyHandler(publisher Publisher) *NotifyHandler {
	return &NotifyHandler{publisher: publisher}
}

// Handle implements Handler.
func (h *NotifyHandler) Handle(_ context.Context, msg Message) error {
	if msg.EventType != events.TypeEntryCreated {
		return nil
	}
	var evt events.EntryCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	h.publisher.Publish(evt)
	recordBroadcast(evt, time.Now())
	return nil
}

// LoopbackWriter stands in for the Kafka producer on single-node deployments: records
// written by the outbox dispatcher are decoded and handled in-process.
type LoopbackWriter struct {
	handler Handler
}

// NewLoopbackWriter constructs a LoopbackWriter.
func NewLoopbackWriter(handler Handler) *LoopbackWriter {
	return &LoopbackWriter{handler: handler}
}

// WriteMessages matches the outbox producer contract.
func (w *LoopbackWriter) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		msg.Topic = topic
		decoded, err := Decode(msg)
		if err != nil {
			recordOutcome(SourceLoopback, "decode_error")
			return err
		}
		if err := w.handler.Handle(ctx, decoded); err != nil {
			recordOutcome(SourceLoopback, "handler_error")
			return err
		}
		recordOutcome(SourceLoopback, "ok")
	}
	return nil
}
