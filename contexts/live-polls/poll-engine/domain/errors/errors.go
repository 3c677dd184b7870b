package errors

import "errors"

var (
	ErrQuestionRequired   = errors.New("poll question is required")
	ErrNotEnoughOptions   = errors.New("poll requires at least two non-empty options")
	ErrExpiryNotFuture    = errors.New("poll expiry must be in the future")
	ErrDuplicateQuestion  = errors.New("poll question is already in use")
	ErrInvalidVoteInput   = errors.New("invalid vote input")
	ErrPollNotFound       = errors.New("poll not found")
	ErrOptionNotFound     = errors.New("option does not belong to poll")
	ErrPollExpired        = errors.New("poll is expired")
	ErrDuplicateVote      = errors.New("user has already voted on this poll")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDeliveryFailed     = errors.New("event delivery failed")
)
