package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/hope-sub007/internal/testfixtures"
	"github.com/unicef/hope-sub007/pkg/events"
	"github.com/unicef/hope-sub007/pkg/report"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaEmitter_Emit(t *testing.T) {
	w := &fakeWriter{}
	e := events.NewKafkaEmitter(w, "representation-events", testfixtures.Logger())

	rep := report.New()
	rep.Created("Household", "hh-rep", "hh-orig", "p1")
	rep.Deleted("Individual", "ind-rep", "ind-orig", "p2")
	rep.Assigned("GrievanceTicket", "gt-1", "p1")

	require.NoError(t, e.Emit(context.Background(), "ba-1", rep.Changes()))
	require.Len(t, w.msgs, 3)

	assert.Equal(t, "hh-orig", string(w.msgs[0].Key))
	assert.Equal(t, "representation.created", header(w.msgs[0], "event_type"))
	assert.Equal(t, "ba-1", header(w.msgs[0], "business_area_id"))
	assert.Equal(t, "representation.deleted", header(w.msgs[1], "event_type"))

	// assigned originals have no original id and are keyed by their own
	assert.Equal(t, "gt-1", string(w.msgs[2].Key))

	var evt events.Event
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &evt))
	assert.Equal(t, events.EventRepresentationDeleted, evt.EventType)
	assert.Equal(t, "Individual", evt.EntityType)
	assert.Equal(t, "ind-rep", evt.ID)
	assert.Equal(t, "p2", evt.ProgramID)
	assert.Equal(t, events.SchemaVersion, evt.SchemaVersion)
	assert.False(t, evt.Timestamp.IsZero())

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
}

func TestKafkaEmitter_NothingToSend(t *testing.T) {
	w := &fakeWriter{err: errors.New("should not be called")}
	e := events.NewKafkaEmitter(w, "t", testfixtures.Logger())
	assert.NoError(t, e.Emit(context.Background(), "ba-1", nil))
}

func TestKafkaEmitter_WriteFails(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	e := events.NewKafkaEmitter(w, "t", testfixtures.Logger())
	err := e.Emit(context.Background(), "ba-1", []report.Change{{Action: report.ActionUpdated, EntityType: "Household", ID: "x"}})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewWriter(t *testing.T) {
	w := events.NewWriter(events.ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "gzip"})
	assert.Equal(t, "t", w.Topic)
	assert.Equal(t, kafka.Gzip, w.Compression)
	require.NoError(t, w.Close())
}
