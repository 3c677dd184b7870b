package workers

import (
	"context"
	"log/slog"
	"strings"

	application "pollcast/contexts/live-polls/poll-engine/application"
	"pollcast/contexts/live-polls/poll-engine/application/queries"
	"pollcast/contexts/live-polls/poll-engine/ports"
	"pollcast/contexts/live-polls/poll-engine/transport/stream"
)

const defaultRefreshCG = "poll-engine-leaderboard-cg"

// LeaderboardRefresher is the second consumer group over the vote partition:
// every vote record triggers a fresh projection which is cached (best effort)
// and fanned out to connected observers.
type LeaderboardRefresher struct {
	Log           ports.EventSubscriber
	Leaderboard   queries.LeaderboardUseCase
	Broadcaster   ports.SnapshotBroadcaster
	Cache         ports.SnapshotCache
	ConsumerGroup string
	FromBeginning bool
	Logger        *slog.Logger
}

func (r LeaderboardRefresher) Start(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	group := strings.TrimSpace(r.ConsumerGroup)
	if group == "" {
		group = defaultRefreshCG
	}
	if err := r.Log.Subscribe(ctx, []int{stream.PartitionVotes}, group, r.FromBeginning, r.handleRecord); err != nil {
		logger.Error("leaderboard refresher subscribe failed",
			"event", "polls_refresher_subscribe_failed",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("leaderboard refresher running",
		"event", "polls_refresher_started",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

// handleRecord recomputes and pushes the snapshot. Projection errors are
// returned for redelivery; a later vote record would rebroadcast anyway, but
// dropping here could leave observers stale until then.
func (r LeaderboardRefresher) handleRecord(ctx context.Context, rec ports.EventRecord) error {
	logger := application.ResolveLogger(r.Logger)
	if rec.Partition != stream.PartitionVotes {
		return nil
	}

	snapshot, err := r.Leaderboard.Project(ctx)
	if err != nil {
		logger.Error("leaderboard projection failed",
			"event", "polls_refresher_project_failed",
			"module", "live-polls/poll-engine",
			"layer", "worker",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err.Error(),
		)
		return err
	}

	if r.Cache != nil {
		if err := r.Cache.PutSnapshot(ctx, snapshot); err != nil {
			logger.Warn("leaderboard snapshot cache write failed",
				"event", "polls_refresher_cache_put_failed",
				"module", "live-polls/poll-engine",
				"layer", "worker",
				"error", err.Error(),
			)
		}
	}

	if r.Broadcaster != nil {
		r.Broadcaster.Broadcast(ctx, snapshot)
	}

	logger.Debug("leaderboard snapshot broadcast",
		"event", "polls_refresher_broadcast",
		"module", "live-polls/poll-engine",
		"layer", "worker",
		"partition", rec.Partition,
		"offset", rec.Offset,
		"entry_count", len(snapshot.Entries),
	)
	return nil
}
