package queries

import (
	"context"
	"strings"
	"time"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

type ResultsUseCase struct {
	Ledger ports.PollLedger
	Clock  ports.Clock
}

// PollResults aggregates one poll with its options, per-option counts, and
// the denormalized total.
func (uc ResultsUseCase) PollResults(ctx context.Context, pollID string) (entities.PollResults, error) {
	if strings.TrimSpace(pollID) == "" {
		return entities.PollResults{}, domainerrors.ErrPollNotFound
	}
	return uc.Ledger.GetPollResults(ctx, strings.TrimSpace(pollID))
}

// OpenPolls lists every non-expired poll with counts.
func (uc ResultsUseCase) OpenPolls(ctx context.Context) ([]entities.PollResults, error) {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return uc.Ledger.ListOpenPolls(ctx, now)
}
