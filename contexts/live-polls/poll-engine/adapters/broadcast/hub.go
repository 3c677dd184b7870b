package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	"pollcast/contexts/live-polls/poll-engine/ports"
	"pollcast/contexts/live-polls/poll-engine/transport/push"
)

// Hub is the in-process broadcast set of connected leaderboard observers.
// Membership is process-lifetime only; nothing is persisted. Send failures
// are isolated per connection and never abort the fan-out.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]ports.ObserverConn
	logger    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers: make(map[string]ports.ObserverConn),
		logger:    logger,
	}
}

// Register pushes the current snapshot to the new observer before adding it
// to the broadcast set, so it never waits for the next vote to see state.
func (h *Hub) Register(_ context.Context, conn ports.ObserverConn, snapshot entities.LeaderboardSnapshot) {
	payload, err := push.NewMessage(push.TypeLeaderboardInit, snapshot).Marshal()
	if err == nil {
		if sendErr := conn.Send(payload); sendErr != nil {
			h.logger.Warn("observer init push failed",
				"event", "polls_broadcast_init_failed",
				"module", "live-polls/poll-engine",
				"layer", "adapter",
				"observer_id", conn.ID(),
				"error", sendErr.Error(),
			)
		}
	}

	h.mu.Lock()
	h.observers[conn.ID()] = conn
	h.mu.Unlock()

	h.logger.Info("observer registered",
		"event", "polls_broadcast_observer_registered",
		"module", "live-polls/poll-engine",
		"layer", "adapter",
		"observer_id", conn.ID(),
	)
}

func (h *Hub) Unregister(observerID string) {
	h.mu.Lock()
	delete(h.observers, observerID)
	h.mu.Unlock()

	h.logger.Info("observer unregistered",
		"event", "polls_broadcast_observer_unregistered",
		"module", "live-polls/poll-engine",
		"layer", "adapter",
		"observer_id", observerID,
	)
}

// Broadcast pushes the snapshot to every open connection. Closing/closed
// connections are skipped, never queued for later.
func (h *Hub) Broadcast(_ context.Context, snapshot entities.LeaderboardSnapshot) {
	payload, err := push.NewMessage(push.TypeLeaderboardUpdate, snapshot).Marshal()
	if err != nil {
		h.logger.Error("snapshot marshal failed",
			"event", "polls_broadcast_marshal_failed",
			"module", "live-polls/poll-engine",
			"layer", "adapter",
			"error", err.Error(),
		)
		return
	}

	h.mu.RLock()
	conns := make([]ports.ObserverConn, 0, len(h.observers))
	for _, conn := range h.observers {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if !conn.Open() {
			continue
		}
		if err := conn.Send(payload); err != nil {
			h.logger.Warn("observer push failed",
				"event", "polls_broadcast_push_failed",
				"module", "live-polls/poll-engine",
				"layer", "adapter",
				"observer_id", conn.ID(),
				"error", err.Error(),
			)
		}
	}
}

// ObserverCount reports the current broadcast-set size.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

var _ ports.SnapshotBroadcaster = (*Hub)(nil)
