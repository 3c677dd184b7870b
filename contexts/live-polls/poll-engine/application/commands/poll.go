package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	application "pollcast/contexts/live-polls/poll-engine/application"
	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	"pollcast/contexts/live-polls/poll-engine/ports"
	"pollcast/contexts/live-polls/poll-engine/transport/stream"
)

// CreatePollCommand is the write-model input for poll creation. Both the
// synchronous ledger path and the ingestion consumer use it.
type CreatePollCommand struct {
	Question  string
	Options   []string
	ExpiredAt time.Time
}

type CreatePollResult struct {
	PollID    string
	OptionIDs []string
}

type RecordVoteCommand struct {
	PollID   string
	OptionID string
	UserID   string
}

type RecordVoteResult struct {
	VoteID string
}

// PollUseCase orchestrates poll commands: producer-side enqueue onto the
// event log and transactional application against the ledger. Uniqueness
// under concurrent votes is delegated to the ledger's constraint, never to
// in-process state.
type PollUseCase struct {
	Ledger       ports.PollLedger
	Log          ports.EventAppender
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	RetryMax     uint64
	RetryInitial time.Duration
	Logger       *slog.Logger
}

// SubmitPoll validates a poll-creation request and appends it to the
// poll-creation partition. Append failures are retried with bounded backoff
// and then surfaced as a delivery failure.
func (uc PollUseCase) SubmitPoll(ctx context.Context, cmd CreatePollCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if err := validatePollInput(cmd, uc.now()); err != nil {
		logger.Warn("poll submit validation failed",
			"event", "polls_submit_poll_validation_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"question", strings.TrimSpace(cmd.Question),
			"error", err.Error(),
		)
		return err
	}

	payload, err := json.Marshal(stream.PollCreationPayload{
		Question:  strings.TrimSpace(cmd.Question),
		Options:   trimOptions(cmd.Options),
		ExpiredAt: cmd.ExpiredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := uc.appendWithRetry(ctx, stream.PartitionPollCreation, strings.TrimSpace(cmd.Question), payload); err != nil {
		logger.Error("poll submit delivery failed",
			"event", "polls_submit_poll_delivery_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"question", strings.TrimSpace(cmd.Question),
			"error", err.Error(),
		)
		return err
	}
	logger.Info("poll submitted",
		"event", "polls_submit_poll_accepted",
		"module", "live-polls/poll-engine",
		"layer", "application",
		"question", strings.TrimSpace(cmd.Question),
	)
	return nil
}

// SubmitVote validates a vote request and appends it to the vote partition,
// keyed by poll id so per-poll vote order is preserved.
func (uc PollUseCase) SubmitVote(ctx context.Context, cmd RecordVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateVoteInput(cmd); err != nil {
		logger.Warn("vote submit validation failed",
			"event", "polls_submit_vote_validation_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"poll_id", strings.TrimSpace(cmd.PollID),
			"user_id", strings.TrimSpace(cmd.UserID),
			"error", err.Error(),
		)
		return err
	}

	payload, err := json.Marshal(stream.VotePayload{
		PollID:   strings.TrimSpace(cmd.PollID),
		OptionID: strings.TrimSpace(cmd.OptionID),
		UserID:   strings.TrimSpace(cmd.UserID),
	})
	if err != nil {
		return err
	}
	if err := uc.appendWithRetry(ctx, stream.PartitionVotes, strings.TrimSpace(cmd.PollID), payload); err != nil {
		logger.Error("vote submit delivery failed",
			"event", "polls_submit_vote_delivery_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"poll_id", strings.TrimSpace(cmd.PollID),
			"user_id", strings.TrimSpace(cmd.UserID),
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vote submitted",
		"event", "polls_submit_vote_accepted",
		"module", "live-polls/poll-engine",
		"layer", "application",
		"poll_id", strings.TrimSpace(cmd.PollID),
		"user_id", strings.TrimSpace(cmd.UserID),
	)
	return nil
}

// CreatePoll applies poll creation against the ledger in one transaction:
// poll row, option rows in supplied order, zeroed counters. Validation is
// fail-fast in request order; the duplicate-question business rule is checked
// inside the ledger transaction.
func (uc PollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (CreatePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()
	if err := validatePollInput(cmd, now); err != nil {
		logger.Warn("poll create validation failed",
			"event", "polls_create_poll_validation_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"question", strings.TrimSpace(cmd.Question),
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreatePollResult{}, err
	}
	texts := trimOptions(cmd.Options)
	options := make([]entities.Option, 0, len(texts))
	optionIDs := make([]string, 0, len(texts))
	for position, text := range texts {
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CreatePollResult{}, err
		}
		options = append(options, entities.Option{
			OptionID: optionID,
			PollID:   pollID,
			Text:     text,
			Position: position,
		})
		optionIDs = append(optionIDs, optionID)
	}
	poll := entities.Poll{
		PollID:    pollID,
		Question:  strings.TrimSpace(cmd.Question),
		ExpiredAt: cmd.ExpiredAt.UTC(),
		CreatedAt: now,
	}

	if err := uc.retryStorage(ctx, func() error {
		return uc.Ledger.CreatePoll(ctx, poll, options)
	}); err != nil {
		logger.Error("poll create failed",
			"event", "polls_create_poll_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"poll_id", pollID,
			"question", poll.Question,
			"error", err.Error(),
		)
		return CreatePollResult{}, err
	}

	logger.Info("poll created",
		"event", "polls_create_poll_created",
		"module", "live-polls/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"question", poll.Question,
		"option_count", len(options),
	)
	return CreatePollResult{PollID: pollID, OptionIDs: optionIDs}, nil
}

// RecordVote applies one vote transactionally. The ledger enforces poll
// existence, expiry at transaction time, option membership, and the
// (poll_id, user_id) uniqueness constraint; a concurrent duplicate surfaces
// as ErrDuplicateVote, never as a second success.
func (uc PollUseCase) RecordVote(ctx context.Context, cmd RecordVoteCommand) (RecordVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if err := validateVoteInput(cmd); err != nil {
		logger.Warn("vote record validation failed",
			"event", "polls_record_vote_validation_failed",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"poll_id", strings.TrimSpace(cmd.PollID),
			"user_id", strings.TrimSpace(cmd.UserID),
			"error", err.Error(),
		)
		return RecordVoteResult{}, err
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return RecordVoteResult{}, err
	}
	vote := entities.Vote{
		VoteID:    voteID,
		PollID:    strings.TrimSpace(cmd.PollID),
		OptionID:  strings.TrimSpace(cmd.OptionID),
		UserID:    strings.TrimSpace(cmd.UserID),
		CreatedAt: uc.now(),
	}

	if err := uc.retryStorage(ctx, func() error {
		return uc.Ledger.RecordVote(ctx, vote)
	}); err != nil {
		logger.Warn("vote record rejected",
			"event", "polls_record_vote_rejected",
			"module", "live-polls/poll-engine",
			"layer", "application",
			"poll_id", vote.PollID,
			"option_id", vote.OptionID,
			"user_id", vote.UserID,
			"error", err.Error(),
		)
		return RecordVoteResult{}, err
	}

	logger.Info("vote recorded",
		"event", "polls_record_vote_recorded",
		"module", "live-polls/poll-engine",
		"layer", "application",
		"vote_id", voteID,
		"poll_id", vote.PollID,
		"option_id", vote.OptionID,
		"user_id", vote.UserID,
	)
	return RecordVoteResult{VoteID: voteID}, nil
}

// DeletePoll is the administrative cascading removal path.
func (uc PollUseCase) DeletePoll(ctx context.Context, pollID string) error {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(pollID) == "" {
		return domainerrors.ErrPollNotFound
	}
	if err := uc.retryStorage(ctx, func() error {
		return uc.Ledger.DeletePoll(ctx, strings.TrimSpace(pollID))
	}); err != nil {
		return err
	}
	logger.Info("poll deleted",
		"event", "polls_delete_poll_deleted",
		"module", "live-polls/poll-engine",
		"layer", "application",
		"poll_id", strings.TrimSpace(pollID),
	)
	return nil
}

func (uc PollUseCase) appendWithRetry(ctx context.Context, partition int, key string, payload []byte) error {
	operation := func() error {
		return uc.Log.Append(ctx, partition, key, payload)
	}
	if err := backoff.Retry(operation, backoff.WithContext(uc.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDeliveryFailed, err)
	}
	return nil
}

// retryStorage retries only the transient storage class; validation and
// business-rule rejections abort immediately.
func (uc PollUseCase) retryStorage(ctx context.Context, operation func() error) error {
	wrapped := func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if errors.Is(err, domainerrors.ErrStorageUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(wrapped, backoff.WithContext(uc.newBackOff(), ctx))
}

func (uc PollUseCase) newBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = uc.RetryInitial
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 50 * time.Millisecond
	}
	policy.MaxInterval = 2 * time.Second
	retries := uc.RetryMax
	if retries == 0 {
		retries = 4
	}
	return backoff.WithMaxRetries(policy, retries)
}

func (uc PollUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

// validatePollInput is fail-fast: first violation wins, in request order.
func validatePollInput(cmd CreatePollCommand, now time.Time) error {
	if strings.TrimSpace(cmd.Question) == "" {
		return domainerrors.ErrQuestionRequired
	}
	if len(trimOptions(cmd.Options)) < 2 {
		return domainerrors.ErrNotEnoughOptions
	}
	if !cmd.ExpiredAt.UTC().After(now.UTC()) {
		return domainerrors.ErrExpiryNotFuture
	}
	return nil
}

func validateVoteInput(cmd RecordVoteCommand) error {
	if strings.TrimSpace(cmd.PollID) == "" ||
		strings.TrimSpace(cmd.OptionID) == "" ||
		strings.TrimSpace(cmd.UserID) == "" {
		return domainerrors.ErrInvalidVoteInput
	}
	return nil
}

func trimOptions(options []string) []string {
	texts := make([]string, 0, len(options))
	for _, option := range options {
		if text := strings.TrimSpace(option); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}
