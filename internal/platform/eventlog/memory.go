package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pollcast/contexts/live-polls/poll-engine/ports"
)

// MemoryLog is the in-process partitioned log used by tests and broker-less
// wiring. Records are retained for replay; each (group, partition) pair keeps
// its own committed cursor, so independent groups consume independently.
// Delivery is at-least-once: a handler error leaves the cursor in place and
// the same record is redelivered after a capped backoff.
type MemoryLog struct {
	mu         sync.Mutex
	partitions map[int][]ports.EventRecord
	cursors    map[string]int64
	notify     map[int][]chan struct{}
	logger     *slog.Logger
}

func NewMemoryLog(logger *slog.Logger) *MemoryLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLog{
		partitions: make(map[int][]ports.EventRecord),
		cursors:    make(map[string]int64),
		notify:     make(map[int][]chan struct{}),
		logger:     logger,
	}
}

func (l *MemoryLog) Append(_ context.Context, partition int, key string, payload []byte) error {
	if partition < 0 {
		return fmt.Errorf("invalid partition %d", partition)
	}
	l.mu.Lock()
	record := ports.EventRecord{
		Partition: partition,
		Key:       key,
		Payload:   append([]byte(nil), payload...),
		Offset:    int64(len(l.partitions[partition])),
	}
	l.partitions[partition] = append(l.partitions[partition], record)
	waiters := l.notify[partition]
	l.notify[partition] = nil
	l.mu.Unlock()

	for _, waiter := range waiters {
		close(waiter)
	}
	return nil
}

// Subscribe starts one consumer goroutine per partition and returns. A group
// with no committed cursor starts from the beginning when fromBeginning is
// set, otherwise from the tail; a committed cursor always wins, mirroring
// broker consumer-group semantics.
func (l *MemoryLog) Subscribe(ctx context.Context, partitions []int, group string, fromBeginning bool, handler ports.EventHandler) error {
	for _, partition := range partitions {
		l.mu.Lock()
		if _, committed := l.cursors[cursorKey(group, partition)]; !committed && !fromBeginning {
			l.cursors[cursorKey(group, partition)] = int64(len(l.partitions[partition]))
		}
		l.mu.Unlock()
		go l.consume(ctx, partition, group, handler)
	}
	return nil
}

// CommittedOffset reports the group's next offset on a partition; tests use
// it to assert poison records still advance the cursor.
func (l *MemoryLog) CommittedOffset(group string, partition int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursors[cursorKey(group, partition)]
}

func (l *MemoryLog) consume(ctx context.Context, partition int, group string, handler ports.EventHandler) {
	delay := 5 * time.Millisecond
	for {
		record, ok, wait := l.next(group, partition)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-wait:
				continue
			}
		}

		if err := handler(ctx, record); err != nil {
			l.logger.Warn("record handling failed; redelivering",
				"event", "eventlog_memory_redeliver",
				"module", "internal/platform/eventlog",
				"layer", "platform",
				"partition", partition,
				"consumer_group", group,
				"offset", record.Offset,
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay < time.Second {
				delay *= 2
			}
			continue
		}
		delay = 5 * time.Millisecond

		l.mu.Lock()
		l.cursors[cursorKey(group, partition)] = record.Offset + 1
		l.mu.Unlock()
	}
}

func (l *MemoryLog) next(group string, partition int) (ports.EventRecord, bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cursor := l.cursors[cursorKey(group, partition)]
	records := l.partitions[partition]
	if cursor < int64(len(records)) {
		return records[cursor], true, nil
	}

	wait := make(chan struct{})
	l.notify[partition] = append(l.notify[partition], wait)
	return ports.EventRecord{}, false, wait
}

func cursorKey(group string, partition int) string {
	return fmt.Sprintf("%s/%d", group, partition)
}

var _ ports.EventAppender = (*MemoryLog)(nil)
var _ ports.EventSubscriber = (*MemoryLog)(nil)
