// Package events publishes representation changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/unicef/hope-sub007/pkg/metrics"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

type EventType string

const (
	EventRepresentationCreated  EventType = "representation.created"
	EventRepresentationUpdated  EventType = "representation.updated"
	EventRepresentationDeleted  EventType = "representation.deleted"
	EventRepresentationAssigned EventType = "representation.assigned"
)

// Event describes one write against a representation. Events are keyed by
// the original id so every change to one beneficiary lands on one partition.
type Event struct {
	EventType      EventType `json:"event_type"`
	SchemaVersion  string    `json:"schema_version"`
	BusinessAreaID string    `json:"business_area_id"`
	EntityType     string    `json:"entity_type"`
	ID             string    `json:"id"`
	OriginalID     string    `json:"original_id,omitempty"`
	ProgramID      string    `json:"program_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e *Event) key() string {
	if e.OriginalID != "" {
		return e.OriginalID
	}
	return e.ID
}

func eventType(action report.Action) EventType {
	switch action {
	case report.ActionCreated:
		return EventRepresentationCreated
	case report.ActionUpdated:
		return EventRepresentationUpdated
	case report.ActionDeleted:
		return EventRepresentationDeleted
	default:
		return EventRepresentationAssigned
	}
}

// FromChanges converts a run's changes into events stamped with now.
func FromChanges(businessAreaID string, changes []report.Change, now time.Time) []*Event {
	out := make([]*Event, 0, len(changes))
	for _, c := range changes {
		out = append(out, &Event{
			EventType:      eventType(c.Action),
			SchemaVersion:  SchemaVersion,
			BusinessAreaID: businessAreaID,
			EntityType:     c.EntityType,
			ID:             c.ID,
			OriginalID:     c.OriginalID,
			ProgramID:      c.ProgramID,
			Timestamp:      now,
		})
	}
	return out
}

// Emitter publishes the changes of a finished run.
type Emitter interface {
	Emit(ctx context.Context, businessAreaID string, changes []report.Change) error
	Close() error
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// MessageWriter is the part of *kafka.Writer the emitter uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaEmitter struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
	now    func() time.Time
}

// NewWriter builds the kafka-go writer for cfg.
func NewWriter(cfg ProducerConfig) *kafka.Writer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaEmitter(writer MessageWriter, topic string, logger ectologger.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: writer,
		logger: logger,
		topic:  topic,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *KafkaEmitter) Emit(ctx context.Context, businessAreaID string, changes []report.Change) error {
	ctx, span := tracing.StartSpan(ctx, "events.KafkaEmitter.Emit")
	defer span.End()

	if len(changes) == 0 {
		return nil
	}

	evts := FromChanges(businessAreaID, changes, e.now())
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		data, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.key()),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.EventType)},
				{Key: "business_area_id", Value: []byte(businessAreaID)},
				{Key: "entity_type", Value: []byte(evt.EntityType)},
			},
		})
	}

	if err := e.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.RecordKafkaPublish(e.topic, "error", len(msgs))
		e.logger.WithContext(ctx).WithError(err).WithField("business_area_id", businessAreaID).
			Error("Failed to publish representation events")
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	metrics.RecordKafkaPublish(e.topic, "success", len(msgs))

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"events":           len(msgs),
		"topic":            e.topic,
	}).Debug("Published representation events")
	return nil
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Emit(context.Context, string, []report.Change) error { return nil }
func (Noop) Close() error                                       { return nil }
