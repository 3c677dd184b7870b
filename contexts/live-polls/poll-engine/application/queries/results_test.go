package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"pollcast/contexts/live-polls/poll-engine/adapters/memory"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
)

func TestPollResultsAggregatesCountsAndTotal(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	seedPoll(t, store, clock, "poll-1", "Best language?", clock.now.Add(time.Hour), "opt-go", "opt-rust")
	castVotes(t, store, clock, "poll-1", "opt-go", 2)
	castVotes(t, store, clock, "poll-1", "opt-rust", 1)

	uc := ResultsUseCase{Ledger: store, Clock: clock}
	results, err := uc.PollResults(context.Background(), "poll-1")
	if err != nil {
		t.Fatalf("expected results to succeed, got %v", err)
	}
	if results.TotalVotes != 3 {
		t.Fatalf("expected total of 3 votes, got %d", results.TotalVotes)
	}
	if len(results.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(results.Options))
	}
	if results.Options[0].OptionID != "opt-go" || results.Options[0].VoteCount != 2 {
		t.Fatalf("expected opt-go first with 2 votes, got %+v", results.Options[0])
	}
	if results.Options[1].OptionID != "opt-rust" || results.Options[1].VoteCount != 1 {
		t.Fatalf("expected opt-rust second with 1 vote, got %+v", results.Options[1])
	}
}

func TestPollResultsRejectsBlankID(t *testing.T) {
	uc := ResultsUseCase{Ledger: memory.NewStore()}
	_, err := uc.PollResults(context.Background(), "  ")
	if !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestOpenPollsExcludesExpired(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	seedPoll(t, store, clock, "poll-open", "open", clock.now.Add(time.Hour), "o1", "o2")
	seedPoll(t, store, clock, "poll-done", "done", clock.now.Add(-time.Minute), "d1", "d2")

	uc := ResultsUseCase{Ledger: store, Clock: clock}
	polls, err := uc.OpenPolls(context.Background())
	if err != nil {
		t.Fatalf("expected listing to succeed, got %v", err)
	}
	if len(polls) != 1 || polls[0].Poll.PollID != "poll-open" {
		t.Fatalf("expected only the open poll, got %+v", polls)
	}
}
