package queries

import (
	"context"
	"time"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

// SnapshotSize caps the leaderboard at the top ten options.
const SnapshotSize = 10

// LeaderboardUseCase recomputes the ranked view from ledger state. It is
// stateless and idempotent; the optional cache is a read-side shortcut only.
type LeaderboardUseCase struct {
	Ledger ports.PollLedger
	Cache  ports.SnapshotCache
	Clock  ports.Clock
}

// Project builds the current snapshot: options of non-expired polls ranked by
// vote count descending, ties by option insertion order, capped at ten.
func (uc LeaderboardUseCase) Project(ctx context.Context) (entities.LeaderboardSnapshot, error) {
	now := uc.now()
	entries, err := uc.Ledger.TopOptions(ctx, now, SnapshotSize)
	if err != nil {
		return entities.LeaderboardSnapshot{}, err
	}
	return entities.LeaderboardSnapshot{
		Entries:     entries,
		GeneratedAt: now,
	}, nil
}

// Current serves the cached snapshot when one exists and falls back to a
// fresh projection on miss or cache error.
func (uc LeaderboardUseCase) Current(ctx context.Context) (entities.LeaderboardSnapshot, error) {
	if uc.Cache != nil {
		if snapshot, found, err := uc.Cache.GetSnapshot(ctx); err == nil && found {
			return snapshot, nil
		}
	}
	return uc.Project(ctx)
}

func (uc LeaderboardUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
