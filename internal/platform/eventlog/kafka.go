package eventlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"pollcast/contexts/live-polls/poll-engine/ports"
)

// OffsetStore persists consumer-group cursors for the kafka adapter. The
// commit happens after the handler returns, so a crash between apply and
// commit redelivers the record (at-least-once).
type OffsetStore interface {
	Load(ctx context.Context, group string, partition int) (int64, bool, error)
	Commit(ctx context.Context, group string, partition int, next int64) error
}

// KafkaLog is the broker-backed event log: one topic, fixed logical
// partitions per event type, per-partition readers with externally tracked
// group offsets.
type KafkaLog struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	offsets OffsetStore
	logger  *slog.Logger
}

func NewKafkaLog(brokers []string, topic string, offsets OffsetStore, logger *slog.Logger) *KafkaLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaLog{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               partitionBalancer{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		brokers: brokers,
		topic:   topic,
		offsets: offsets,
		logger:  logger,
	}
}

// Append produces one record onto the requested partition. Retry/backoff
// policy is owned by the caller; a returned error is one failed attempt.
func (l *KafkaLog) Append(ctx context.Context, partition int, key string, payload []byte) error {
	return l.writer.WriteMessages(ctx, kafka.Message{
		Key:        []byte(key),
		Value:      payload,
		WriterData: partition,
	})
}

func (l *KafkaLog) Subscribe(ctx context.Context, partitions []int, group string, fromBeginning bool, handler ports.EventHandler) error {
	for _, partition := range partitions {
		go l.consumePartition(ctx, partition, group, fromBeginning, handler)
	}
	return nil
}

func (l *KafkaLog) Close() error {
	return l.writer.Close()
}

func (l *KafkaLog) consumePartition(ctx context.Context, partition int, group string, fromBeginning bool, handler ports.EventHandler) {
	start, err := l.startOffset(ctx, partition, group, fromBeginning)
	if err != nil {
		l.logger.Error("offset load failed; consumer not started",
			"event", "eventlog_kafka_offset_load_failed",
			"module", "internal/platform/eventlog",
			"layer", "platform",
			"partition", partition,
			"consumer_group", group,
			"error", err.Error(),
		)
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   l.brokers,
		Topic:     l.topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()
	if err := reader.SetOffset(start); err != nil {
		l.logger.Error("offset seek failed; consumer not started",
			"event", "eventlog_kafka_offset_seek_failed",
			"module", "internal/platform/eventlog",
			"layer", "platform",
			"partition", partition,
			"consumer_group", group,
			"offset", start,
			"error", err.Error(),
		)
		return
	}

	for {
		// Partition unavailability blocks here until the broker recovers; no
		// fallback ordering is attempted.
		message, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("kafka read failed; retrying",
				"event", "eventlog_kafka_read_failed",
				"module", "internal/platform/eventlog",
				"layer", "platform",
				"partition", partition,
				"consumer_group", group,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		record := ports.EventRecord{
			Partition: partition,
			Key:       string(message.Key),
			Payload:   message.Value,
			Offset:    message.Offset,
		}
		if !l.deliver(ctx, record, group, handler) {
			return
		}

		if err := l.offsets.Commit(ctx, group, partition, message.Offset+1); err != nil {
			// Lost commits only widen the redelivery window; consumers are
			// idempotent against that.
			l.logger.Warn("offset commit failed",
				"event", "eventlog_kafka_offset_commit_failed",
				"module", "internal/platform/eventlog",
				"layer", "platform",
				"partition", partition,
				"consumer_group", group,
				"offset", message.Offset+1,
				"error", err.Error(),
			)
		}
	}
}

// deliver invokes the handler, redelivering the same record with capped
// backoff until it returns nil or the context ends.
func (l *KafkaLog) deliver(ctx context.Context, record ports.EventRecord, group string, handler ports.EventHandler) bool {
	delay := 50 * time.Millisecond
	for {
		err := handler(ctx, record)
		if err == nil {
			return true
		}
		l.logger.Warn("record handling failed; redelivering",
			"event", "eventlog_kafka_redeliver",
			"module", "internal/platform/eventlog",
			"layer", "platform",
			"partition", record.Partition,
			"consumer_group", group,
			"offset", record.Offset,
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay < 5*time.Second {
			delay *= 2
		}
	}
}

func (l *KafkaLog) startOffset(ctx context.Context, partition int, group string, fromBeginning bool) (int64, error) {
	committed, found, err := l.offsets.Load(ctx, group, partition)
	if err != nil {
		return 0, err
	}
	if found {
		return committed, nil
	}
	if fromBeginning {
		return kafka.FirstOffset, nil
	}
	return kafka.LastOffset, nil
}

// partitionBalancer routes each message to the partition requested through
// Message.WriterData; event types map to fixed partitions upstream.
type partitionBalancer struct{}

func (partitionBalancer) Balance(msg kafka.Message, partitions ...int) int {
	if want, ok := msg.WriterData.(int); ok {
		for _, candidate := range partitions {
			if candidate == want {
				return want
			}
		}
	}
	if len(partitions) > 0 {
		return partitions[0]
	}
	return 0
}

var _ ports.EventAppender = (*KafkaLog)(nil)
var _ ports.EventSubscriber = (*KafkaLog)(nil)
