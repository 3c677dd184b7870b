package eventlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisOffsetStore keeps one hash per consumer group, field per partition.
type RedisOffsetStore struct {
	client *redis.Client
}

func NewRedisOffsetStore(client *redis.Client) *RedisOffsetStore {
	return &RedisOffsetStore{client: client}
}

func (s *RedisOffsetStore) Load(ctx context.Context, group string, partition int) (int64, bool, error) {
	raw, err := s.client.HGet(ctx, offsetKey(group), strconv.Itoa(partition)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load offset for group %s partition %d: %w", group, partition, err)
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse offset for group %s partition %d: %w", group, partition, err)
	}
	return offset, true, nil
}

func (s *RedisOffsetStore) Commit(ctx context.Context, group string, partition int, next int64) error {
	if err := s.client.HSet(ctx, offsetKey(group), strconv.Itoa(partition), next).Err(); err != nil {
		return fmt.Errorf("commit offset for group %s partition %d: %w", group, partition, err)
	}
	return nil
}

func offsetKey(group string) string {
	return "pollcast:offsets:" + group
}

var _ OffsetStore = (*RedisOffsetStore)(nil)
