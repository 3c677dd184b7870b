package pollengine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pollcast/contexts/live-polls/poll-engine/application/commands"
	"pollcast/contexts/live-polls/poll-engine/transport/push"
	"pollcast/internal/platform/eventlog"
)

type testObserver struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (o *testObserver) ID() string { return "observer-1" }

func (o *testObserver) Open() bool { return true }

func (o *testObserver) Send(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.payloads = append(o.payloads, append([]byte(nil), payload...))
	return nil
}

func (o *testObserver) messages(t *testing.T) []push.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	messages := make([]push.Message, 0, len(o.payloads))
	for _, payload := range o.payloads {
		var message push.Message
		if err := json.Unmarshal(payload, &message); err != nil {
			t.Fatalf("expected decodable push payload, got %v", err)
		}
		messages = append(messages, message)
	}
	return messages
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

// End-to-end flow through the in-memory wiring: a poll is submitted onto the
// log, the ingestion consumer materializes it, votes flow through both
// consumer groups, and observers receive init plus per-vote updates.
func TestPollLifecycleThroughEventLog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := eventlog.NewMemoryLog(nil)
	module := NewInMemoryModule(log, log, nil)
	if err := module.Ingestion.Start(ctx); err != nil {
		t.Fatalf("expected ingestion start to succeed, got %v", err)
	}
	if err := module.Refresher.Start(ctx); err != nil {
		t.Fatalf("expected refresher start to succeed, got %v", err)
	}

	observer := &testObserver{}
	snapshot, err := module.Leaderboard.Current(ctx)
	if err != nil {
		t.Fatalf("expected initial snapshot, got %v", err)
	}
	module.Hub.Register(ctx, observer, snapshot)

	err = module.Polls.SubmitPoll(ctx, commands.CreatePollCommand{
		Question:  "Best language?",
		Options:   []string{"Go", "Rust"},
		ExpiredAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("expected poll submit to succeed, got %v", err)
	}

	var pollID, goOption, rustOption string
	waitFor(t, func() bool {
		polls, err := module.Results.OpenPolls(ctx)
		if err != nil || len(polls) != 1 {
			return false
		}
		pollID = polls[0].Poll.PollID
		goOption = polls[0].Options[0].OptionID
		rustOption = polls[0].Options[1].OptionID
		return true
	})

	votes := []commands.RecordVoteCommand{
		{PollID: pollID, OptionID: goOption, UserID: "alice"},
		{PollID: pollID, OptionID: goOption, UserID: "bob"},
		{PollID: pollID, OptionID: rustOption, UserID: "carol"},
	}
	for _, vote := range votes {
		if err := module.Polls.SubmitVote(ctx, vote); err != nil {
			t.Fatalf("expected vote submit to succeed, got %v", err)
		}
	}

	waitFor(t, func() bool {
		return module.Store.VoteCount(pollID) == 3
	})

	results, err := module.Results.PollResults(ctx, pollID)
	if err != nil {
		t.Fatalf("expected results to succeed, got %v", err)
	}
	if results.TotalVotes != 3 {
		t.Fatalf("expected 3 counted votes, got %d", results.TotalVotes)
	}
	if results.Options[0].VoteCount != 2 || results.Options[1].VoteCount != 1 {
		t.Fatalf("expected Go 2 / Rust 1, got %+v", results.Options)
	}

	waitFor(t, func() bool {
		messages := observer.messages(t)
		return len(messages) == 4
	})
	messages := observer.messages(t)
	if messages[0].Type != push.TypeLeaderboardInit {
		t.Fatalf("expected init message first, got %s", messages[0].Type)
	}
	for _, message := range messages[1:] {
		if message.Type != push.TypeLeaderboardUpdate {
			t.Fatalf("expected update messages after init, got %s", message.Type)
		}
	}

	final, err := module.Leaderboard.Project(ctx)
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	if final.Entries[0].OptionID != goOption || final.Entries[0].VoteCount != 2 {
		t.Fatalf("expected Go leading with 2 votes, got %+v", final.Entries[0])
	}
	if final.Entries[1].OptionID != rustOption || final.Entries[1].VoteCount != 1 {
		t.Fatalf("expected Rust second with 1 vote, got %+v", final.Entries[1])
	}
}

// A redelivered or repeated vote record for the same (poll, user) pair must
// not change counts, and the consumer keeps making progress past it.
func TestDuplicateVoteRecordsAreCountedOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := eventlog.NewMemoryLog(nil)
	module := NewInMemoryModule(log, log, nil)
	if err := module.Ingestion.Start(ctx); err != nil {
		t.Fatalf("expected ingestion start to succeed, got %v", err)
	}

	if err := module.Polls.SubmitPoll(ctx, commands.CreatePollCommand{
		Question:  "Tabs or spaces?",
		Options:   []string{"Tabs", "Spaces"},
		ExpiredAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("expected poll submit to succeed, got %v", err)
	}

	var pollID, optionID string
	waitFor(t, func() bool {
		polls, err := module.Results.OpenPolls(ctx)
		if err != nil || len(polls) != 1 {
			return false
		}
		pollID = polls[0].Poll.PollID
		optionID = polls[0].Options[0].OptionID
		return true
	})

	for i := 0; i < 3; i++ {
		if err := module.Polls.SubmitVote(ctx, commands.RecordVoteCommand{
			PollID:   pollID,
			OptionID: optionID,
			UserID:   "alice",
		}); err != nil {
			t.Fatalf("expected submit %d to succeed, got %v", i, err)
		}
	}
	if err := module.Polls.SubmitVote(ctx, commands.RecordVoteCommand{
		PollID:   pollID,
		OptionID: optionID,
		UserID:   "bob",
	}); err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}

	// The trailing distinct vote proves the consumer advanced past the
	// duplicate records.
	waitFor(t, func() bool {
		return module.Store.VoteCount(pollID) == 2
	})

	results, err := module.Results.PollResults(ctx, pollID)
	if err != nil {
		t.Fatalf("expected results to succeed, got %v", err)
	}
	if results.TotalVotes != 2 {
		t.Fatalf("expected duplicates collapsed to one vote per user, got %d", results.TotalVotes)
	}
}
