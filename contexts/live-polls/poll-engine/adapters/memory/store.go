package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

// Store is the in-memory VoteLedger used by tests and broker-less local
// wiring. The single mutex plays the role the storage engine's isolation and
// unique index play in the postgres adapter: concurrent duplicate votes see
// exactly one success.
type Store struct {
	mu sync.Mutex

	polls          map[string]entities.Poll
	questions      map[string]string
	options        map[string]entities.Option
	votes          map[string]entities.Vote
	voteIdentity   map[string]string
	pollCounters   map[string]int
	optionCounters map[string]int
}

func NewStore() *Store {
	return &Store{
		polls:          make(map[string]entities.Poll),
		questions:      make(map[string]string),
		options:        make(map[string]entities.Option),
		votes:          make(map[string]entities.Vote),
		voteIdentity:   make(map[string]string),
		pollCounters:   make(map[string]int),
		optionCounters: make(map[string]int),
	}
}

func (s *Store) CreatePoll(_ context.Context, poll entities.Poll, options []entities.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	question := strings.TrimSpace(poll.Question)
	if _, exists := s.questions[question]; exists {
		return domainerrors.ErrDuplicateQuestion
	}

	pollID := strings.TrimSpace(poll.PollID)
	s.polls[pollID] = entities.Poll{
		PollID:    pollID,
		Question:  question,
		ExpiredAt: poll.ExpiredAt.UTC(),
		CreatedAt: poll.CreatedAt.UTC(),
	}
	s.questions[question] = pollID
	s.pollCounters[pollID] = 0
	for _, option := range options {
		optionID := strings.TrimSpace(option.OptionID)
		s.options[optionID] = entities.Option{
			OptionID: optionID,
			PollID:   pollID,
			Text:     strings.TrimSpace(option.Text),
			Position: option.Position,
		}
		s.optionCounters[optionID] = 0
	}
	return nil
}

func (s *Store) RecordVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pollID := strings.TrimSpace(vote.PollID)
	poll, ok := s.polls[pollID]
	if !ok {
		return domainerrors.ErrPollNotFound
	}
	now := vote.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if poll.Expired(now) {
		return domainerrors.ErrPollExpired
	}
	option, ok := s.options[strings.TrimSpace(vote.OptionID)]
	if !ok || option.PollID != pollID {
		return domainerrors.ErrOptionNotFound
	}

	identity := pollID + "\x00" + strings.TrimSpace(vote.UserID)
	if _, exists := s.voteIdentity[identity]; exists {
		return domainerrors.ErrDuplicateVote
	}

	voteID := strings.TrimSpace(vote.VoteID)
	s.votes[voteID] = entities.Vote{
		VoteID:    voteID,
		PollID:    pollID,
		OptionID:  option.OptionID,
		UserID:    strings.TrimSpace(vote.UserID),
		CreatedAt: now,
	}
	s.voteIdentity[identity] = voteID
	s.optionCounters[option.OptionID]++
	s.pollCounters[pollID]++
	return nil
}

func (s *Store) GetPollResults(_ context.Context, pollID string) (entities.PollResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[strings.TrimSpace(pollID)]
	if !ok {
		return entities.PollResults{}, domainerrors.ErrPollNotFound
	}
	return s.buildResults(poll), nil
}

func (s *Store) ListOpenPolls(_ context.Context, now time.Time) ([]entities.PollResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.PollResults, 0, len(s.polls))
	for _, poll := range s.polls {
		if poll.Expired(now) {
			continue
		}
		items = append(items, s.buildResults(poll))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Poll.CreatedAt.Before(items[j].Poll.CreatedAt)
	})
	return items, nil
}

func (s *Store) TopOptions(_ context.Context, now time.Time, limit int) ([]entities.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	entries := make([]entities.LeaderboardEntry, 0, len(s.options))
	positions := make(map[string]int, len(s.options))
	for _, option := range s.options {
		poll, ok := s.polls[option.PollID]
		if !ok || poll.Expired(now) {
			continue
		}
		entries = append(entries, entities.LeaderboardEntry{
			PollID:       poll.PollID,
			PollQuestion: poll.Question,
			OptionID:     option.OptionID,
			OptionText:   option.Text,
			VoteCount:    s.optionCounters[option.OptionID],
		})
		positions[option.OptionID] = option.Position
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VoteCount != entries[j].VoteCount {
			return entries[i].VoteCount > entries[j].VoteCount
		}
		if positions[entries[i].OptionID] != positions[entries[j].OptionID] {
			return positions[entries[i].OptionID] < positions[entries[j].OptionID]
		}
		return entries[i].OptionID < entries[j].OptionID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) DeletePoll(_ context.Context, pollID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pollID = strings.TrimSpace(pollID)
	poll, ok := s.polls[pollID]
	if !ok {
		return domainerrors.ErrPollNotFound
	}
	delete(s.polls, pollID)
	delete(s.questions, poll.Question)
	delete(s.pollCounters, pollID)
	for optionID, option := range s.options {
		if option.PollID == pollID {
			delete(s.options, optionID)
			delete(s.optionCounters, optionID)
		}
	}
	for voteID, vote := range s.votes {
		if vote.PollID == pollID {
			delete(s.votes, voteID)
			delete(s.voteIdentity, pollID+"\x00"+vote.UserID)
		}
	}
	return nil
}

// VoteCount reports the number of vote rows for a poll; tests use it to
// cross-check counter consistency.
func (s *Store) VoteCount(pollID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, vote := range s.votes {
		if vote.PollID == strings.TrimSpace(pollID) {
			count++
		}
	}
	return count
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) buildResults(poll entities.Poll) entities.PollResults {
	options := make([]entities.OptionResult, 0)
	for _, option := range s.options {
		if option.PollID != poll.PollID {
			continue
		}
		options = append(options, entities.OptionResult{
			OptionID:  option.OptionID,
			Text:      option.Text,
			Position:  option.Position,
			VoteCount: s.optionCounters[option.OptionID],
		})
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].Position < options[j].Position
	})
	return entities.PollResults{
		Poll:       poll,
		TotalVotes: s.pollCounters[poll.PollID],
		Options:    options,
	}
}

var _ ports.PollLedger = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
