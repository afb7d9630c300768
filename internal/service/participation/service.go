package participation

import (
	"context"
	"errors"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

// ContestReader returns a contest or a typed not-found error.
type ContestReader interface {
	Get(ctx context.Context, id int64) (*dc.Contest, error)
}

// Gate reports which required channels the user has not joined.
type Gate interface {
	CheckAll(ctx context.Context, userID int64, channelIDs []int64) []int64
}

// Requirements lists the channels a contest's participants must be in.
type Requirements interface {
	RequiredChannels(ctx context.Context, c *dc.Contest) ([]int64, error)
}

// CountCache is a best-effort accelerator for Count.
type CountCache interface {
	Get(ctx context.Context, contestID int64) (int, bool, error)
	Set(ctx context.Context, contestID int64, n int) error
	Invalidate(ctx context.Context, contestID int64) error
}

// Tracker records analytics events. Failures are ignored.
type Tracker interface {
	Track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64)
}

// Service is the participation ledger front: it runs the join pre-checks
// and relies on the storage uniqueness constraint for the final word.
type Service struct {
	contests ContestReader
	ledger   dc.ParticipantRepository
	gate     Gate
	reqs     Requirements
	counts   CountCache
	tracker  Tracker
}

type Option func(*Service)

func WithGate(g Gate, r Requirements) Option {
	return func(s *Service) { s.gate, s.reqs = g, r }
}

func WithCountCache(c CountCache) Option {
	return func(s *Service) { s.counts = c }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func NewService(contests ContestReader, ledger dc.ParticipantRepository, opts ...Option) *Service {
	s := &Service{contests: contests, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join admits userID to the contest. A repeated join is reported as
// JoinResultAlreadyJoined, not as an error. Capacity is a soft bound: the
// pre-check may race with concurrent joins and the scheduler ends the
// contest once the ledger reaches the cap.
func (s *Service) Join(ctx context.Context, contestID, userID int64, referrerID *int64) (dc.JoinResult, error) {
	c, err := s.contests.Get(ctx, contestID)
	if err != nil {
		return 0, err
	}
	if c.Status != dc.StatusActive {
		return 0, apperrors.NewContestNotActiveError(contestID, string(c.Status))
	}

	joined, err := s.ledger.Exists(ctx, contestID, userID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("check participation", err)
	}
	if joined {
		return dc.JoinResultAlreadyJoined, nil
	}

	if c.MaxParticipants != nil {
		n, err := s.ledger.Count(ctx, contestID)
		if err != nil {
			return 0, apperrors.NewDatabaseError("count participants", err)
		}
		if n >= *c.MaxParticipants {
			return 0, apperrors.NewCapacityExceededError(contestID, *c.MaxParticipants)
		}
	}

	if s.gate != nil && s.reqs != nil {
		required, err := s.reqs.RequiredChannels(ctx, c)
		if err != nil {
			return 0, err
		}
		if missing := s.gate.CheckAll(ctx, userID, required); len(missing) > 0 {
			return 0, apperrors.NewNotSubscribedError(userID, missing)
		}
	}
	// The gate may have consumed the whole deadline.
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "Subscription check timed out")
	}

	if referrerID != nil && *referrerID == userID {
		referrerID = nil
	}
	p := &dc.Participant{ContestID: contestID, UserID: userID, ReferrerID: referrerID}
	inserted, err := s.ledger.Insert(ctx, p)
	switch {
	case errors.Is(err, dc.ErrNotActive):
		// The contest moved on while the gate was checking.
		status := "unknown"
		if cur, gerr := s.contests.Get(ctx, contestID); gerr == nil {
			status = string(cur.Status)
		}
		return 0, apperrors.NewContestNotActiveError(contestID, status)
	case errors.Is(err, dc.ErrNotFound):
		return 0, apperrors.NewContestNotFoundError(contestID)
	case err != nil:
		return 0, apperrors.NewDatabaseError("insert participant", err)
	}
	if !inserted {
		return dc.JoinResultAlreadyJoined, nil
	}

	if s.counts != nil {
		if err := s.counts.Invalidate(ctx, contestID); err != nil {
			logger.Debug().Err(err).Int64("contest_id", contestID).Msg("Count cache invalidation failed")
		}
	}
	if s.tracker != nil {
		s.tracker.Track(ctx, userID, analytics.EventContestJoined, &contestID)
	}
	logger.Debug().Int64("contest_id", contestID).Int64("user_id", userID).Msg("Participant joined")
	return dc.JoinResultJoined, nil
}

// Count may be served from cache; the ledger is authoritative.
func (s *Service) Count(ctx context.Context, contestID int64) (int, error) {
	if s.counts != nil {
		if n, ok, err := s.counts.Get(ctx, contestID); err == nil && ok {
			return n, nil
		}
	}
	n, err := s.ledger.Count(ctx, contestID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count participants", err)
	}
	if s.counts != nil {
		_ = s.counts.Set(ctx, contestID, n)
	}
	return n, nil
}

func (s *Service) IsParticipating(ctx context.Context, contestID, userID int64) (bool, error) {
	ok, err := s.ledger.Exists(ctx, contestID, userID)
	if err != nil {
		return false, apperrors.NewDatabaseError("check participation", err)
	}
	return ok, nil
}

// List returns participants in join order; limit <= 0 returns all of them.
func (s *Service) List(ctx context.Context, contestID int64, limit int) ([]dc.Participant, error) {
	out, err := s.ledger.List(ctx, contestID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list participants", err)
	}
	return out, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]dc.Participant, error) {
	out, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list user participations", err)
	}
	return out, nil
}

// Remove is an admin action. Winners cannot be removed once drawn.
func (s *Service) Remove(ctx context.Context, contestID, userID int64) error {
	c, err := s.contests.Get(ctx, contestID)
	if err != nil {
		return err
	}
	if c.Status == dc.StatusEnded {
		return apperrors.NewConflictError("participant", "contest already ended")
	}
	removed, err := s.ledger.Remove(ctx, contestID, userID)
	if err != nil {
		return apperrors.NewDatabaseError("remove participant", err)
	}
	if !removed {
		return apperrors.NewNotFoundError("participant", userID)
	}
	if s.counts != nil {
		_ = s.counts.Invalidate(ctx, contestID)
	}
	logger.Info().Int64("contest_id", contestID).Int64("user_id", userID).Msg("Participant removed")
	return nil
}
