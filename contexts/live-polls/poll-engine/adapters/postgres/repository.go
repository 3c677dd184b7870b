package postgresadapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"pollcast/contexts/live-polls/poll-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	"pollcast/contexts/live-polls/poll-engine/ports"
)

const defaultQueryTimeout = 5 * time.Second

// Repository is the postgres VoteLedger. Concurrency correctness is carried
// by the storage engine: the unique index on votes(poll_id, user_id) is the
// authoritative duplicate gate and counter increments are in-place updates.
type Repository struct {
	db           *gorm.DB
	queryTimeout time.Duration
	logger       *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:           db,
		queryTimeout: defaultQueryTimeout,
		logger:       logger,
	}
}

// CreatePoll inserts the poll, its options in supplied order, and zeroed
// counters in one transaction. The duplicate-question business rule is a
// read-then-insert; the transaction runs SERIALIZABLE so the check cannot be
// interleaved with a concurrent identical creation. Serialization failures
// surface as the retryable storage class.
func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll, options []entities.Option) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&pollModel{}).
			Where("question = ?", strings.TrimSpace(poll.Question)).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domainerrors.ErrDuplicateQuestion
		}

		row := pollModelFromEntity(poll)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, option := range options {
			optionRow := optionModelFromEntity(option)
			if err := tx.Create(&optionRow).Error; err != nil {
				return err
			}
			if err := tx.Create(&optionCounterModel{OptionID: optionRow.ID, VoteCount: 0}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&pollCounterModel{PollID: row.ID, VoteCount: 0}).Error
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateQuestion) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateQuestion
		}
		return r.classify("polls_repo_create_poll_failed", err,
			"poll_id", strings.TrimSpace(poll.PollID),
			"question", strings.TrimSpace(poll.Question),
		)
	}
	return nil
}

// RecordVote applies one vote transactionally: existence, expiry at
// transaction time, option membership, a fast-path duplicate check, the
// insert (constraint-backed), and two atomic counter increments.
func (r *Repository) RecordVote(ctx context.Context, vote entities.Vote) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	now := vote.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var poll pollModel
		if err := tx.Where("id = ?", strings.TrimSpace(vote.PollID)).First(&poll).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPollNotFound
			}
			return err
		}
		if !poll.ExpiredAt.UTC().After(now) {
			return domainerrors.ErrPollExpired
		}

		var option optionModel
		if err := tx.Where("id = ? AND poll_id = ?", strings.TrimSpace(vote.OptionID), poll.ID).
			First(&option).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOptionNotFound
			}
			return err
		}

		// Advisory fast path; the unique index is what actually decides the
		// race.
		var duplicates int64
		if err := tx.Model(&voteModel{}).
			Where("poll_id = ? AND user_id = ?", poll.ID, strings.TrimSpace(vote.UserID)).
			Count(&duplicates).Error; err != nil {
			return err
		}
		if duplicates > 0 {
			return domainerrors.ErrDuplicateVote
		}

		row := voteModelFromEntity(vote)
		row.CreatedAt = now
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateVote
			}
			return err
		}

		optionUpdate := tx.Model(&optionCounterModel{}).
			Where("option_id = ?", option.ID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if optionUpdate.Error != nil {
			return optionUpdate.Error
		}
		if optionUpdate.RowsAffected == 0 {
			return fmt.Errorf("option counter row missing for option %s", option.ID)
		}

		pollUpdate := tx.Model(&pollCounterModel{}).
			Where("poll_id = ?", poll.ID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if pollUpdate.Error != nil {
			return pollUpdate.Error
		}
		if pollUpdate.RowsAffected == 0 {
			return fmt.Errorf("poll counter row missing for poll %s", poll.ID)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrPollNotFound),
			errors.Is(err, domainerrors.ErrPollExpired),
			errors.Is(err, domainerrors.ErrOptionNotFound),
			errors.Is(err, domainerrors.ErrDuplicateVote):
			return err
		}
		return r.classify("polls_repo_record_vote_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
			"poll_id", strings.TrimSpace(vote.PollID),
			"user_id", strings.TrimSpace(vote.UserID),
		)
	}
	return nil
}

func (r *Repository) GetPollResults(ctx context.Context, pollID string) (entities.PollResults, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var poll pollModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		First(&poll).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PollResults{}, domainerrors.ErrPollNotFound
		}
		return entities.PollResults{}, r.classify("polls_repo_get_results_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	results, err := r.loadResults(ctx, poll)
	if err != nil {
		return entities.PollResults{}, r.classify("polls_repo_get_results_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	return results, nil
}

func (r *Repository) ListOpenPolls(ctx context.Context, now time.Time) ([]entities.PollResults, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var polls []pollModel
	if err := r.db.WithContext(ctx).
		Where("expired_at > ?", now.UTC()).
		Order("created_at ASC").
		Find(&polls).Error; err != nil {
		return nil, r.classify("polls_repo_list_open_failed", err)
	}

	items := make([]entities.PollResults, 0, len(polls))
	for _, poll := range polls {
		results, err := r.loadResults(ctx, poll)
		if err != nil {
			return nil, r.classify("polls_repo_list_open_failed", err, "poll_id", poll.ID)
		}
		items = append(items, results)
	}
	return items, nil
}

// TopOptions ranks options of non-expired polls by vote count descending,
// ties by insertion position then option id.
func (r *Repository) TopOptions(ctx context.Context, now time.Time, limit int) ([]entities.LeaderboardEntry, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	var rows []leaderboardRow
	err := r.db.WithContext(ctx).
		Table("options AS o").
		Select("p.id AS poll_id, p.question AS poll_question, o.id AS option_id, o.text AS option_text, COALESCE(oc.vote_count, 0) AS vote_count").
		Joins("JOIN polls AS p ON p.id = o.poll_id").
		Joins("LEFT JOIN option_counters AS oc ON oc.option_id = o.id").
		Where("p.expired_at > ?", now.UTC()).
		Order("vote_count DESC").
		Order("o.position ASC").
		Order("o.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, r.classify("polls_repo_top_options_failed", err)
	}

	entries := make([]entities.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entities.LeaderboardEntry{
			PollID:       row.PollID,
			PollQuestion: row.PollQuestion,
			OptionID:     row.OptionID,
			OptionText:   row.OptionText,
			VoteCount:    row.VoteCount,
		})
	}
	return entries, nil
}

// DeletePoll is the administrative cascading removal: votes, counters,
// options, then the poll, all-or-nothing.
func (r *Repository) DeletePoll(ctx context.Context, pollID string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	pollID = strings.TrimSpace(pollID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("poll_id = ?", pollID).Delete(&voteModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("option_id IN (?)",
			tx.Model(&optionModel{}).Select("id").Where("poll_id = ?", pollID),
		).Delete(&optionCounterModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&optionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&pollCounterModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", pollID).Delete(&pollModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrPollNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			return err
		}
		return r.classify("polls_repo_delete_poll_failed", err, "poll_id", pollID)
	}
	return nil
}

func (r *Repository) loadResults(ctx context.Context, poll pollModel) (entities.PollResults, error) {
	var total pollCounterModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", poll.ID).
		First(&total).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.PollResults{}, err
	}

	var options []optionResultRow
	if err := r.db.WithContext(ctx).
		Table("options AS o").
		Select("o.id AS option_id, o.text AS text, o.position AS position, COALESCE(oc.vote_count, 0) AS vote_count").
		Joins("LEFT JOIN option_counters AS oc ON oc.option_id = o.id").
		Where("o.poll_id = ?", poll.ID).
		Order("o.position ASC").
		Scan(&options).Error; err != nil {
		return entities.PollResults{}, err
	}

	results := entities.PollResults{
		Poll:       poll.toEntity(),
		TotalVotes: total.VoteCount,
		Options:    make([]entities.OptionResult, 0, len(options)),
	}
	for _, option := range options {
		results.Options = append(results.Options, entities.OptionResult{
			OptionID:  option.OptionID,
			Text:      option.Text,
			Position:  option.Position,
			VoteCount: option.VoteCount,
		})
	}
	return results, nil
}

func (r *Repository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.queryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// classify logs the failure and maps transient storage conditions onto the
// retryable storage class; everything else passes through unchanged.
func (r *Repository) classify(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "live-polls/poll-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("polls repository operation failed", fields...)

	if isTransient(err) {
		return fmt.Errorf("%w: %v", domainerrors.ErrStorageUnavailable, err)
	}
	return err
}

type pollModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Question  string    `gorm:"column:question"`
	ExpiredAt time.Time `gorm:"column:expired_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) pollModel {
	row := pollModel{
		ID:        strings.TrimSpace(poll.PollID),
		Question:  strings.TrimSpace(poll.Question),
		ExpiredAt: poll.ExpiredAt.UTC(),
		CreatedAt: poll.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m pollModel) toEntity() entities.Poll {
	return entities.Poll{
		PollID:    m.ID,
		Question:  m.Question,
		ExpiredAt: m.ExpiredAt.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type optionModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	PollID   string `gorm:"column:poll_id"`
	Text     string `gorm:"column:text"`
	Position int    `gorm:"column:position"`
}

func (optionModel) TableName() string {
	return "options"
}

func optionModelFromEntity(option entities.Option) optionModel {
	return optionModel{
		ID:       strings.TrimSpace(option.OptionID),
		PollID:   strings.TrimSpace(option.PollID),
		Text:     strings.TrimSpace(option.Text),
		Position: option.Position,
	}
}

type voteModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	PollID    string    `gorm:"column:poll_id"`
	OptionID  string    `gorm:"column:option_id"`
	UserID    string    `gorm:"column:user_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:        strings.TrimSpace(vote.VoteID),
		PollID:    strings.TrimSpace(vote.PollID),
		OptionID:  strings.TrimSpace(vote.OptionID),
		UserID:    strings.TrimSpace(vote.UserID),
		CreatedAt: vote.CreatedAt.UTC(),
	}
}

type pollCounterModel struct {
	PollID    string `gorm:"column:poll_id;primaryKey"`
	VoteCount int    `gorm:"column:vote_count"`
}

func (pollCounterModel) TableName() string {
	return "poll_counters"
}

type optionCounterModel struct {
	OptionID  string `gorm:"column:option_id;primaryKey"`
	VoteCount int    `gorm:"column:vote_count"`
}

func (optionCounterModel) TableName() string {
	return "option_counters"
}

type leaderboardRow struct {
	PollID       string `gorm:"column:poll_id"`
	PollQuestion string `gorm:"column:poll_question"`
	OptionID     string `gorm:"column:option_id"`
	OptionText   string `gorm:"column:option_text"`
	VoteCount    int    `gorm:"column:vote_count"`
}

type optionResultRow struct {
	OptionID  string `gorm:"column:option_id"`
	Text      string `gorm:"column:text"`
	Position  int    `gorm:"column:position"`
	VoteCount int    `gorm:"column:vote_count"`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTransient covers timeouts, serialization/deadlock retries, cancelled
// statements, and connection-class SQLSTATEs.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014", "57P01", "57P02", "57P03":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

var _ ports.PollLedger = (*Repository)(nil)
