// Package ingest consumes inbound call events from Kafka and feeds
// them into an apilog.Log, adapted from the teacher's
// infra/kafka.Producer (a thin wrapper over one segmentio/kafka-go
// client) but on the read side.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/neunhoef/resource-manager/internal/apilog"
	"github.com/neunhoef/resource-manager/internal/metrics"
)

// event is the wire shape an inbound call event arrives in.
type event struct {
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	SentAt   time.Time     `json:"sent_at"`
}

// Consumer reads call events off one Kafka topic and records each
// into a Log.
type Consumer struct {
	reader *kafka.Reader
	log    *apilog.Log
	met    *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that Run reports ingest lag
// into for every recorded event that carries a sent_at timestamp.
func (c *Consumer) SetMetrics(m *metrics.Registry) {
	c.met = m
}

// NewConsumer constructs a Consumer reading topic from brokers as
// part of consumer group group, recording every event into log.
func NewConsumer(brokers []string, topic, group string, log *apilog.Log) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  group,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		log: log,
	}
}

// Run reads messages until ctx is cancelled or a non-deadline error
// occurs, recording every well-formed event into the Log. Malformed
// messages are skipped rather than stopping the loop, since one bad
// producer should not halt ingestion for everyone else.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest: read message: %w", err)
		}

		ev, err := parseEvent(msg.Value)
		if err != nil {
			continue
		}

		c.log.Record(ev.Method, ev.Path, ev.Status, ev.Duration)

		if c.met != nil && !ev.SentAt.IsZero() {
			c.met.IngestLagSeconds.Set(time.Since(ev.SentAt).Seconds())
		}
	}
}

func parseEvent(data []byte) (event, error) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return event{}, err
	}
	if ev.Method == "" || ev.Path == "" {
		return event{}, fmt.Errorf("ingest: event missing method or path")
	}
	return ev, nil
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
