package queries

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pollcast/contexts/live-polls/poll-engine/adapters/memory"
	"pollcast/contexts/live-polls/poll-engine/domain/entities"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stubCache struct {
	snapshot entities.LeaderboardSnapshot
	found    bool
	err      error
	puts     int
}

func (c *stubCache) GetSnapshot(_ context.Context) (entities.LeaderboardSnapshot, bool, error) {
	return c.snapshot, c.found, c.err
}

func (c *stubCache) PutSnapshot(_ context.Context, snapshot entities.LeaderboardSnapshot) error {
	c.snapshot = snapshot
	c.puts++
	return nil
}

func seedPoll(t *testing.T, store *memory.Store, clock fixedClock, pollID string, question string, expiredAt time.Time, optionIDs ...string) {
	t.Helper()
	options := make([]entities.Option, 0, len(optionIDs))
	for position, optionID := range optionIDs {
		options = append(options, entities.Option{
			OptionID: optionID,
			PollID:   pollID,
			Text:     optionID,
			Position: position,
		})
	}
	err := store.CreatePoll(context.Background(), entities.Poll{
		PollID:    pollID,
		Question:  question,
		ExpiredAt: expiredAt,
		CreatedAt: clock.now,
	}, options)
	if err != nil {
		t.Fatalf("expected poll seed to succeed, got %v", err)
	}
}

func castVotes(t *testing.T, store *memory.Store, clock fixedClock, pollID string, optionID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		err := store.RecordVote(context.Background(), entities.Vote{
			VoteID:    fmt.Sprintf("%s-vote-%d", optionID, i),
			PollID:    pollID,
			OptionID:  optionID,
			UserID:    fmt.Sprintf("%s-user-%d", optionID, i),
			CreatedAt: clock.now,
		})
		if err != nil {
			t.Fatalf("expected vote seed to succeed, got %v", err)
		}
	}
}

func TestProjectCapsSnapshotAtTen(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	expiry := clock.now.Add(time.Hour)

	seedPoll(t, store, clock, "poll-1", "q1", expiry, "a1", "a2", "a3", "a4")
	seedPoll(t, store, clock, "poll-2", "q2", expiry, "b1", "b2", "b3", "b4")
	seedPoll(t, store, clock, "poll-3", "q3", expiry, "c1", "c2", "c3", "c4")

	castVotes(t, store, clock, "poll-1", "a1", 12)
	castVotes(t, store, clock, "poll-2", "b1", 11)

	uc := LeaderboardUseCase{Ledger: store, Clock: clock}
	snapshot, err := uc.Project(context.Background())
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	if len(snapshot.Entries) != SnapshotSize {
		t.Fatalf("expected %d entries, got %d", SnapshotSize, len(snapshot.Entries))
	}
	if snapshot.Entries[0].OptionID != "a1" || snapshot.Entries[0].VoteCount != 12 {
		t.Fatalf("expected a1 with 12 votes on top, got %+v", snapshot.Entries[0])
	}
	if snapshot.Entries[1].OptionID != "b1" || snapshot.Entries[1].VoteCount != 11 {
		t.Fatalf("expected b1 with 11 votes second, got %+v", snapshot.Entries[1])
	}
	if snapshot.GeneratedAt != clock.now {
		t.Fatalf("expected snapshot stamped from clock, got %v", snapshot.GeneratedAt)
	}
}

func TestProjectExcludesExpiredPolls(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()

	seedPoll(t, store, clock, "poll-open", "open", clock.now.Add(time.Hour), "open-1", "open-2")
	seedPoll(t, store, fixedClock{now: clock.now.Add(-2 * time.Hour)}, "poll-old", "old", clock.now.Add(-time.Minute), "old-1", "old-2")

	uc := LeaderboardUseCase{Ledger: store, Clock: clock}
	snapshot, err := uc.Project(context.Background())
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	for _, entry := range snapshot.Entries {
		if entry.PollID == "poll-old" {
			t.Fatalf("expected expired poll excluded, got entry %+v", entry)
		}
	}
	if len(snapshot.Entries) != 2 {
		t.Fatalf("expected only the open poll's options, got %d entries", len(snapshot.Entries))
	}
}

func TestProjectBreaksTiesByOptionInsertionOrder(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()

	seedPoll(t, store, clock, "poll-1", "q1", clock.now.Add(time.Hour), "z-first", "a-second", "m-third")
	castVotes(t, store, clock, "poll-1", "z-first", 3)
	castVotes(t, store, clock, "poll-1", "a-second", 3)
	castVotes(t, store, clock, "poll-1", "m-third", 3)

	uc := LeaderboardUseCase{Ledger: store, Clock: clock}
	snapshot, err := uc.Project(context.Background())
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	got := []string{snapshot.Entries[0].OptionID, snapshot.Entries[1].OptionID, snapshot.Entries[2].OptionID}
	want := []string{"z-first", "a-second", "m-third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected tie order %v, got %v", want, got)
		}
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	seedPoll(t, store, clock, "poll-1", "q1", clock.now.Add(time.Hour), "opt-1", "opt-2")
	castVotes(t, store, clock, "poll-1", "opt-2", 2)

	uc := LeaderboardUseCase{Ledger: store, Clock: clock}
	first, err := uc.Project(context.Background())
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	second, err := uc.Project(context.Background())
	if err != nil {
		t.Fatalf("expected projection to succeed, got %v", err)
	}
	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("expected identical projections, got %d vs %d entries", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i] != second.Entries[i] {
			t.Fatalf("expected identical entry %d, got %+v vs %+v", i, first.Entries[i], second.Entries[i])
		}
	}
}

func TestCurrentPrefersCachedSnapshot(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	cached := entities.LeaderboardSnapshot{
		Entries:     []entities.LeaderboardEntry{{PollID: "poll-cached", OptionID: "opt-cached", VoteCount: 7}},
		GeneratedAt: clock.now.Add(-time.Minute),
	}
	uc := LeaderboardUseCase{
		Ledger: memory.NewStore(),
		Cache:  &stubCache{snapshot: cached, found: true},
		Clock:  clock,
	}

	snapshot, err := uc.Current(context.Background())
	if err != nil {
		t.Fatalf("expected cached read to succeed, got %v", err)
	}
	if len(snapshot.Entries) != 1 || snapshot.Entries[0].OptionID != "opt-cached" {
		t.Fatalf("expected cached snapshot, got %+v", snapshot.Entries)
	}
}

func TestCurrentFallsBackToProjectionOnCacheError(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	seedPoll(t, store, clock, "poll-1", "q1", clock.now.Add(time.Hour), "opt-1", "opt-2")

	uc := LeaderboardUseCase{
		Ledger: store,
		Cache:  &stubCache{err: errors.New("cache down")},
		Clock:  clock,
	}
	snapshot, err := uc.Current(context.Background())
	if err != nil {
		t.Fatalf("expected fallback projection to succeed, got %v", err)
	}
	if len(snapshot.Entries) != 2 {
		t.Fatalf("expected live projection entries, got %d", len(snapshot.Entries))
	}
}
