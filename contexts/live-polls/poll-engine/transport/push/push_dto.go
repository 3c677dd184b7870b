package push

import (
	"encoding/json"
	"time"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
)

const (
	TypeLeaderboardInit   = "LEADERBOARD_INIT"
	TypeLeaderboardUpdate = "LEADERBOARD_UPDATE"
)

type LeaderboardEntry struct {
	PollID       string `json:"poll_id"`
	PollQuestion string `json:"poll_question"`
	OptionID     string `json:"option_id"`
	OptionText   string `json:"option_text"`
	VoteCount    int    `json:"vote_count"`
}

type LeaderboardData struct {
	Data      []LeaderboardEntry `json:"data"`
	Timestamp string             `json:"timestamp"`
}

// Message is the push envelope delivered to every connected observer.
type Message struct {
	Type string          `json:"type"`
	Data LeaderboardData `json:"data"`
}

func NewMessage(messageType string, snapshot entities.LeaderboardSnapshot) Message {
	entries := make([]LeaderboardEntry, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		entries = append(entries, LeaderboardEntry{
			PollID:       entry.PollID,
			PollQuestion: entry.PollQuestion,
			OptionID:     entry.OptionID,
			OptionText:   entry.OptionText,
			VoteCount:    entry.VoteCount,
		})
	}
	return Message{
		Type: messageType,
		Data: LeaderboardData{
			Data:      entries,
			Timestamp: snapshot.GeneratedAt.UTC().Format(time.RFC3339),
		},
	}
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
