package redisadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

const (
	snapshotKey        = "pollcast:leaderboard:snapshot"
	defaultSnapshotTTL = 5 * time.Minute
)

// SnapshotCache stores the latest leaderboard snapshot in redis. It is a
// read-side optimization only: the refresher overwrites it after every
// applied vote, and readers fall back to a fresh projection on miss or error,
// so it never serves data staler than the last committed vote it claims to
// reflect.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(addr string, logger *slog.Logger) (*SnapshotCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &SnapshotCache{
		client: client,
		ttl:    defaultSnapshotTTL,
		logger: logger,
	}, nil
}

func (c *SnapshotCache) GetSnapshot(ctx context.Context) (entities.LeaderboardSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entities.LeaderboardSnapshot{}, false, nil
		}
		return entities.LeaderboardSnapshot{}, false, err
	}
	var row snapshotRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return entities.LeaderboardSnapshot{}, false, err
	}
	return row.toEntity(), true, nil
}

func (c *SnapshotCache) PutSnapshot(ctx context.Context, snapshot entities.LeaderboardSnapshot) error {
	raw, err := json.Marshal(snapshotRowFromEntity(snapshot))
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, raw, c.ttl).Err()
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

type snapshotEntryRow struct {
	PollID       string `json:"poll_id"`
	PollQuestion string `json:"poll_question"`
	OptionID     string `json:"option_id"`
	OptionText   string `json:"option_text"`
	VoteCount    int    `json:"vote_count"`
}

type snapshotRow struct {
	Entries     []snapshotEntryRow `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func snapshotRowFromEntity(snapshot entities.LeaderboardSnapshot) snapshotRow {
	entries := make([]snapshotEntryRow, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		entries = append(entries, snapshotEntryRow(entry))
	}
	return snapshotRow{
		Entries:     entries,
		GeneratedAt: snapshot.GeneratedAt.UTC(),
	}
}

func (r snapshotRow) toEntity() entities.LeaderboardSnapshot {
	entries := make([]entities.LeaderboardEntry, 0, len(r.Entries))
	for _, entry := range r.Entries {
		entries = append(entries, entities.LeaderboardEntry(entry))
	}
	return entities.LeaderboardSnapshot{
		Entries:     entries,
		GeneratedAt: r.GeneratedAt.UTC(),
	}
}

var _ ports.SnapshotCache = (*SnapshotCache)(nil)
