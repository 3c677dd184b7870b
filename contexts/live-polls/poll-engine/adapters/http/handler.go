package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"pollcast/contexts/live-polls/poll-engine/application/commands"
	"pollcast/contexts/live-polls/poll-engine/application/queries"
	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	httptransport "pollcast/contexts/live-polls/poll-engine/transport/http"
)

// Handler adapts transport DTOs to the application use cases. Requests enter
// the pipeline through the event log; reads go straight to the ledger.
type Handler struct {
	Polls       commands.PollUseCase
	Results     queries.ResultsUseCase
	Leaderboard queries.LeaderboardUseCase
	Logger      *slog.Logger
}

func (h Handler) SubmitPollHandler(ctx context.Context, req httptransport.CreatePollRequest) (httptransport.CreatePollResponse, error) {
	expiredAt, err := time.Parse(time.RFC3339, req.ExpiredAt)
	if err != nil {
		return httptransport.CreatePollResponse{}, domainerrors.ErrExpiryNotFuture
	}
	if err := h.Polls.SubmitPoll(ctx, commands.CreatePollCommand{
		Question:  req.Question,
		Options:   req.Options,
		ExpiredAt: expiredAt,
	}); err != nil {
		return httptransport.CreatePollResponse{}, err
	}
	return httptransport.CreatePollResponse{Accepted: true}, nil
}

func (h Handler) SubmitVoteHandler(ctx context.Context, pollID string, req httptransport.CastVoteRequest) (httptransport.CastVoteResponse, error) {
	if err := h.Polls.SubmitVote(ctx, commands.RecordVoteCommand{
		PollID:   pollID,
		OptionID: req.OptionID,
		UserID:   req.UserID,
	}); err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		PollID:   pollID,
		OptionID: req.OptionID,
		UserID:   req.UserID,
		Accepted: true,
	}, nil
}

func (h Handler) PollResultsHandler(ctx context.Context, pollID string) (httptransport.PollResultsResponse, error) {
	results, err := h.Results.PollResults(ctx, pollID)
	if err != nil {
		return httptransport.PollResultsResponse{}, err
	}
	return mapResults(results), nil
}

func (h Handler) OpenPollsHandler(ctx context.Context) (httptransport.OpenPollsResponse, error) {
	polls, err := h.Results.OpenPolls(ctx)
	if err != nil {
		return httptransport.OpenPollsResponse{}, err
	}
	items := make([]httptransport.PollResultsResponse, 0, len(polls))
	for _, poll := range polls {
		items = append(items, mapResults(poll))
	}
	return httptransport.OpenPollsResponse{Polls: items}, nil
}

func (h Handler) LeaderboardHandler(ctx context.Context) (httptransport.LeaderboardResponse, error) {
	snapshot, err := h.Leaderboard.Current(ctx)
	if err != nil {
		return httptransport.LeaderboardResponse{}, err
	}
	items := make([]httptransport.LeaderboardItem, 0, len(snapshot.Entries))
	for rank, entry := range snapshot.Entries {
		items = append(items, httptransport.LeaderboardItem{
			PollID:       entry.PollID,
			PollQuestion: entry.PollQuestion,
			OptionID:     entry.OptionID,
			OptionText:   entry.OptionText,
			VoteCount:    entry.VoteCount,
			Rank:         rank + 1,
		})
	}
	return httptransport.LeaderboardResponse{
		Items:     items,
		Timestamp: snapshot.GeneratedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h Handler) DeletePollHandler(ctx context.Context, pollID string) error {
	return h.Polls.DeletePoll(ctx, pollID)
}

func mapResults(results entities.PollResults) httptransport.PollResultsResponse {
	options := make([]httptransport.OptionResult, 0, len(results.Options))
	for _, option := range results.Options {
		options = append(options, httptransport.OptionResult{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
		})
	}
	return httptransport.PollResultsResponse{
		PollID:     results.Poll.PollID,
		Question:   results.Poll.Question,
		ExpiredAt:  results.Poll.ExpiredAt.UTC().Format(time.RFC3339),
		CreatedAt:  results.Poll.CreatedAt.UTC().Format(time.RFC3339),
		TotalVotes: results.TotalVotes,
		Options:    options,
	}
}
