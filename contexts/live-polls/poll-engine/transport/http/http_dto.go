package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	ExpiredAt string   `json:"expired_at"`
}

type CreatePollResponse struct {
	PollID    string   `json:"poll_id"`
	OptionIDs []string `json:"option_ids"`
	Accepted  bool     `json:"accepted"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
	UserID   string `json:"user_id"`
}

type CastVoteResponse struct {
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	UserID   string `json:"user_id"`
	Accepted bool   `json:"accepted"`
}

type OptionResult struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	VoteCount int    `json:"vote_count"`
}

type PollResultsResponse struct {
	PollID     string         `json:"poll_id"`
	Question   string         `json:"question"`
	ExpiredAt  string         `json:"expired_at"`
	CreatedAt  string         `json:"created_at"`
	TotalVotes int            `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

type OpenPollsResponse struct {
	Polls []PollResultsResponse `json:"polls"`
}

type LeaderboardItem struct {
	PollID       string `json:"poll_id"`
	PollQuestion string `json:"poll_question"`
	OptionID     string `json:"option_id"`
	OptionText   string `json:"option_text"`
	VoteCount    int    `json:"vote_count"`
	Rank         int    `json:"rank"`
}

type LeaderboardResponse struct {
	Items     []LeaderboardItem `json:"items"`
	Timestamp string            `json:"timestamp"`
}
