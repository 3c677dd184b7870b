package ports

import (
	"context"
	"time"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
)

// PollLedger is the transactional storage contract. Every method is a single
// all-or-nothing unit of work; implementations own isolation and uniqueness
// (the (poll_id, user_id) constraint is the authoritative duplicate-vote gate).
type PollLedger interface {
	CreatePoll(ctx context.Context, poll entities.Poll, options []entities.Option) error
	RecordVote(ctx context.Context, vote entities.Vote) error
	GetPollResults(ctx context.Context, pollID string) (entities.PollResults, error)
	ListOpenPolls(ctx context.Context, now time.Time) ([]entities.PollResults, error)
	TopOptions(ctx context.Context, now time.Time, limit int) ([]entities.LeaderboardEntry, error)
	DeletePoll(ctx context.Context, pollID string) error
}

// EventRecord is one delivered log record. Ordering holds within a partition
// only.
type EventRecord struct {
	Partition int
	Key       string
	Payload   []byte
	Offset    int64
}

// EventHandler processes a delivered record. A nil return commits the group
// offset; an error leaves the offset uncommitted and the record is redelivered.
type EventHandler func(ctx context.Context, rec EventRecord) error

type EventAppender interface {
	Append(ctx context.Context, partition int, key string, payload []byte) error
}

// EventSubscriber attaches a consumer group to a partition set. Delivery is
// at-least-once; independent groups keep independent cursors and may replay
// from the beginning.
type EventSubscriber interface {
	Subscribe(ctx context.Context, partitions []int, group string, fromBeginning bool, handler EventHandler) error
}

// ObserverConn is one connected leaderboard observer. Send failures are
// isolated per connection by the broadcaster.
type ObserverConn interface {
	ID() string
	Open() bool
	Send(payload []byte) error
}

type SnapshotBroadcaster interface {
	Broadcast(ctx context.Context, snapshot entities.LeaderboardSnapshot)
}

// SnapshotCache is an optional read-side optimization. It must never serve a
// snapshot staler than the last one put after a committed vote; callers treat
// a miss or error as "recompute".
type SnapshotCache interface {
	GetSnapshot(ctx context.Context) (entities.LeaderboardSnapshot, bool, error)
	PutSnapshot(ctx context.Context, snapshot entities.LeaderboardSnapshot) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
