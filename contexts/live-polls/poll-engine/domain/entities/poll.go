package entities

import "time"

type Poll struct {
	PollID    string
	Question  string
	ExpiredAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the poll is past its expiry at the given instant.
// Expiry is evaluated at transaction time, never at enqueue time.
func (p Poll) Expired(now time.Time) bool {
	return !p.ExpiredAt.UTC().After(now.UTC())
}

type Option struct {
	OptionID string
	PollID   string
	Text     string
	// Position is the 0-based creation index inside the poll; leaderboard ties
	// resolve by it.
	Position int
}

type Vote struct {
	VoteID    string
	PollID    string
	OptionID  string
	UserID    string
	CreatedAt time.Time
}

type OptionResult struct {
	OptionID  string
	Text      string
	Position  int
	VoteCount int
}

type PollResults struct {
	Poll       Poll
	TotalVotes int
	Options    []OptionResult
}

type LeaderboardEntry struct {
	PollID       string
	PollQuestion string
	OptionID     string
	OptionText   string
	VoteCount    int
}

type LeaderboardSnapshot struct {
	Entries     []LeaderboardEntry
	GeneratedAt time.Time
}
