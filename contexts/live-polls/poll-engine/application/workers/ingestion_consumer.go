package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	application "pollcast/contexts/live-polls/poll-engine/application"
	"pollcast/contexts/live-polls/poll-engine/application/commands"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	"pollcast/contexts/live-polls/poll-engine/ports"
	"pollcast/contexts/live-polls/poll-engine/transport/stream"
)

const defaultIngestionCG = "poll-engine-ingestion-cg"

// Consumer lifecycle states, logged on every transition.
const (
	StateIdle       = "idle"
	StateConnected  = "connected"
	StateSubscribed = "subscribed"
	StateRunning    = "running"
)

// IngestionConsumer drives both log partitions against the ledger: partition
// 0 records become polls, partition 1 records become votes. Delivery is
// at-least-once; the ledger's constraints make reapplication safe.
type IngestionConsumer struct {
	Log           ports.EventSubscriber
	Polls         commands.PollUseCase
	ConsumerGroup string
	FromBeginning bool
	Logger        *slog.Logger

	state atomic.Value
}

// Start subscribes the ingestion group to both partitions and returns once
// the subscription is active. Record handling runs on the subscriber's loop.
func (c *IngestionConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	c.transition(logger, StateIdle)

	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultIngestionCG
	}
	c.transition(logger, StateConnected)

	partitions := []int{stream.PartitionPollCreation, stream.PartitionVotes}
	if err := c.Log.Subscribe(ctx, partitions, group, c.FromBeginning, c.handleRecord); err != nil {
		logger.Error("ingestion subscribe failed",
			"event", "polls_ingestion_subscribe_failed",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	c.transition(logger, StateSubscribed)
	c.transition(logger, StateRunning)

	logger.Info("ingestion consumer running",
		"event", "polls_ingestion_started",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"consumer_group", group,
		"partitions", partitions,
	)
	return nil
}

// State reports the current lifecycle state.
func (c *IngestionConsumer) State() string {
	if state, ok := c.state.Load().(string); ok {
		return state
	}
	return StateIdle
}

// handleRecord applies one delivered record. Returning nil commits the
// offset. Poison records (bad payloads, business-rule rejections) are logged
// and dropped so the partition never blocks; only the transient storage class
// is returned for redelivery.
func (c *IngestionConsumer) handleRecord(ctx context.Context, rec ports.EventRecord) error {
	logger := application.ResolveLogger(c.Logger)
	switch rec.Partition {
	case stream.PartitionPollCreation:
		return c.handlePollCreation(ctx, logger, rec)
	case stream.PartitionVotes:
		return c.handleVote(ctx, logger, rec)
	default:
		logger.Warn("ingestion record on unexpected partition ignored",
			"event", "polls_ingestion_unexpected_partition",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
		)
		return nil
	}
}

func (c *IngestionConsumer) handlePollCreation(ctx context.Context, logger *slog.Logger, rec ports.EventRecord) error {
	var payload stream.PollCreationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		logger.Error("poll creation payload decode failed; record dropped",
			"event", "polls_ingestion_poll_decode_failed",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err.Error(),
		)
		return nil
	}
	expiredAt, err := time.Parse(time.RFC3339, payload.ExpiredAt)
	if err != nil {
		logger.Error("poll creation expiry decode failed; record dropped",
			"event", "polls_ingestion_poll_expiry_invalid",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"expired_at", payload.ExpiredAt,
			"error", err.Error(),
		)
		return nil
	}

	result, err := c.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		Question:  payload.Question,
		Options:   payload.Options,
		ExpiredAt: expiredAt,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStorageUnavailable) {
			return err
		}
		logger.Warn("poll creation record rejected; record dropped",
			"event", "polls_ingestion_poll_rejected",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"question", strings.TrimSpace(payload.Question),
			"error", err.Error(),
		)
		return nil
	}

	logger.Info("poll creation record applied",
		"event", "polls_ingestion_poll_applied",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"partition", rec.Partition,
		"offset", rec.Offset,
		"poll_id", result.PollID,
	)
	return nil
}

func (c *IngestionConsumer) handleVote(ctx context.Context, logger *slog.Logger, rec ports.EventRecord) error {
	var payload stream.VotePayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		logger.Error("vote payload decode failed; record dropped",
			"event", "polls_ingestion_vote_decode_failed",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err.Error(),
		)
		return nil
	}

	result, err := c.Polls.RecordVote(ctx, commands.RecordVoteCommand{
		PollID:   payload.PollID,
		OptionID: payload.OptionID,
		UserID:   payload.UserID,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStorageUnavailable) {
			return err
		}
		// Duplicate votes on redelivery and votes racing poll creation land
		// here: rejected by the ledger, offset still committed.
		logger.Warn("vote record rejected; record dropped",
			"event", "polls_ingestion_vote_rejected",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"poll_id", strings.TrimSpace(payload.PollID),
			"user_id", strings.TrimSpace(payload.UserID),
			"error", err.Error(),
		)
		return nil
	}

	logger.Info("vote record applied",
		"event", "polls_ingestion_vote_applied",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"partition", rec.Partition,
		"offset", rec.Offset,
		"vote_id", result.VoteID,
		"poll_id", strings.TrimSpace(payload.PollID),
	)
	return nil
}

func (c *IngestionConsumer) transition(logger *slog.Logger, state string) {
	c.state.Store(state)
	logger.Debug("ingestion consumer state changed",
		"event", "polls_ingestion_state_changed",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"state", state,
	)
}
