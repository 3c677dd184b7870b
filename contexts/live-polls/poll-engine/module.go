package pollengine

import (
	"log/slog"
	"time"

	broadcastadapter "pollcast/contexts/live-polls/poll-engine/adapters/broadcast"
	httpadapter "pollcast/contexts/live-polls/poll-engine/adapters/http"
	"pollcast/contexts/live-polls/poll-engine/adapters/memory"
	"pollcast/contexts/live-polls/poll-engine/application/commands"
	"pollcast/contexts/live-polls/poll-engine/application/queries"
	"pollcast/contexts/live-polls/poll-engine/application/workers"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

type Module struct {
	Handler     httpadapter.Handler
	Polls       commands.PollUseCase
	Results     queries.ResultsUseCase
	Leaderboard queries.LeaderboardUseCase
	Ingestion   *workers.IngestionConsumer
	Refresher   workers.LeaderboardRefresher
	Hub         *broadcastadapter.Hub

	// Store is set by NewInMemoryModule for test seeding/inspection.
	Store *memory.Store
}

type Dependencies struct {
	Ledger        ports.PollLedger
	Appender      ports.EventAppender
	Subscriber    ports.EventSubscriber
	Cache         ports.SnapshotCache
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	RetryMax      uint64
	RetryInitial  time.Duration
	IngestionCG   string
	RefreshCG     string
	FromBeginning bool
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Ledger:       deps.Ledger,
		Log:          deps.Appender,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		RetryMax:     deps.RetryMax,
		RetryInitial: deps.RetryInitial,
		Logger:       deps.Logger,
	}
	resultsUseCase := queries.ResultsUseCase{
		Ledger: deps.Ledger,
		Clock:  deps.Clock,
	}
	leaderboardUseCase := queries.LeaderboardUseCase{
		Ledger: deps.Ledger,
		Cache:  deps.Cache,
		Clock:  deps.Clock,
	}
	hub := broadcastadapter.NewHub(deps.Logger)

	return Module{
		Handler: httpadapter.Handler{
			Polls:       pollUseCase,
			Results:     resultsUseCase,
			Leaderboard: leaderboardUseCase,
			Logger:      deps.Logger,
		},
		Polls:       pollUseCase,
		Results:     resultsUseCase,
		Leaderboard: leaderboardUseCase,
		Ingestion: &workers.IngestionConsumer{
			Log:           deps.Subscriber,
			Polls:         pollUseCase,
			ConsumerGroup: deps.IngestionCG,
			FromBeginning: deps.FromBeginning,
			Logger:        deps.Logger,
		},
		Refresher: workers.LeaderboardRefresher{
			Log:           deps.Subscriber,
			Leaderboard:   leaderboardUseCase,
			Broadcaster:   hub,
			Cache:         deps.Cache,
			ConsumerGroup: deps.RefreshCG,
			FromBeginning: deps.FromBeginning,
			Logger:        deps.Logger,
		},
		Hub: hub,
	}
}

// NewInMemoryModule wires the module onto the in-memory ledger; the caller
// supplies the (usually in-memory) event log halves.
func NewInMemoryModule(appender ports.EventAppender, subscriber ports.EventSubscriber, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ledger:        store,
		Appender:      appender,
		Subscriber:    subscriber,
		Clock:         store,
		IDGen:         store,
		RetryMax:      2,
		RetryInitial:  time.Millisecond,
		FromBeginning: true,
		Logger:        logger,
	})
	module.Store = store
	return module
}
