package stream

// Logical event-log partitions. Ordering is guaranteed within a partition
// only; votes referencing a not-yet-ingested poll fail validation and drop.
const (
	PartitionPollCreation = 0
	PartitionVotes        = 1
)

// PollCreationPayload is the partition-0 wire shape. ExpiredAt is ISO-8601.
type PollCreationPayload struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	ExpiredAt string   `json:"expired_at"`
}

// VotePayload is the partition-1 wire shape.
type VotePayload struct {
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	UserID   string `json:"user_id"`
}
