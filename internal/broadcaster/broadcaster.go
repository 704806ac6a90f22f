// Package broadcaster periodically republishes archived batches onto
// Kafka, adapted from the teacher's jobs/broadcaster.Broadcaster
// (itself a periodic scan-and-send loop over exitwal.ExitWAL). Where
// the teacher replayed pending order events, broadcaster replays
// archived call batches that have not yet been published.
package broadcaster

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/rcrowley/go-metrics"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/neunhoef/resource-manager/internal/archive"
)

// Broadcaster republishes batches stored in an archive.Store, in
// ascending key (sequence) order, to a Kafka topic.
type Broadcaster[T archive.Seqed] struct {
	store    *archive.Store
	producer sarama.SyncProducer
	topic    string
	lastSeq  uint64
}

// New constructs a Broadcaster publishing to topic on brokers. The
// sarama producer reports its internal metrics into registry (when
// non-nil); that go-metrics registry is not the Prometheus registry
// served at /metrics, so these counters do not appear there.
func New[T archive.Seqed](store *archive.Store, brokers []string, topic string, registry metrics.Registry) (*Broadcaster[T], error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	if registry != nil {
		cfg.MetricRegistry = registry
	}

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster[T]{store: store, producer: producer, topic: topic}, nil
}

// Start launches the periodic replay loop, stopping when ctx is
// cancelled.
func (b *Broadcaster[T]) Start(ctx context.Context, interval time.Duration) {
	log.Println("[broadcaster] started")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

// replayOnce publishes every archived batch keyed above the last
// sequence number this Broadcaster has successfully sent.
func (b *Broadcaster[T]) replayOnce() {
	_ = b.store.ScanKeys(func(maxSeq uint64) error {
		if maxSeq <= b.lastSeq {
			return nil
		}

		batch, err := archive.GetBatch[T](b.store, maxSeq)
		if err != nil {
			return err // stop the scan; retry on the next tick
		}

		envelope, err := envelopeFor(maxSeq, batch, time.Now())
		if err != nil {
			return nil
		}

		payload, err := json.Marshal(envelope)
		if err != nil {
			return nil
		}

		msg := &sarama.ProducerMessage{Topic: b.topic, Value: sarama.ByteEncoder(payload)}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			return nil
		}

		b.lastSeq = maxSeq
		return nil
	})
}

// envelopeFor wraps a batch in a structpb.Struct, the well-known-type
// envelope every consumer (including non-Go ones) can decode without
// sharing a generated schema. The broadcast time is converted through
// timestamppb and carried as an RFC 3339 string with nanosecond
// precision.
func envelopeFor[T any](maxSeq uint64, batch []T, sentAt time.Time) (*structpb.Struct, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	list, err := structpb.NewList(items)
	if err != nil {
		return nil, err
	}

	ts := timestamppb.New(sentAt)

	return structpb.NewStruct(map[string]any{
		"max_seq":      float64(maxSeq),
		"broadcast_at": ts.AsTime().Format(time.RFC3339Nano),
		"items":        list.AsSlice(),
	})
}

// Close releases the underlying Kafka producer.
func (b *Broadcaster[T]) Close() error {
	return b.producer.Close()
}
