package winner

import (
	"context"
	"errors"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/utils/random"
)

// Tracker records analytics events.
type Tracker interface {
	Track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64)
}

// SampleFunc draws k distinct participants uniformly.
type SampleFunc func(ps []dc.Participant, k int) ([]dc.Participant, error)

// Service selects and serves contest winners.
type Service struct {
	contests dc.Repository
	winners  dc.WinnerRepository
	tracker  Tracker
	sample   SampleFunc
}

func NewService(contests dc.Repository, winners dc.WinnerRepository, tracker Tracker) *Service {
	return &Service{
		contests: contests,
		winners:  winners,
		tracker:  tracker,
		sample:   random.Sample[dc.Participant],
	}
}

// WithSampler replaces the random source, for deterministic tests.
func (s *Service) WithSampler(f SampleFunc) *Service {
	s.sample = f
	return s
}

// Pick assigns positions 1..n. When there are no more participants than
// requested, everyone wins in join order; otherwise k are drawn uniformly
// without replacement and ranked in draw order.
func Pick(ps []dc.Participant, k int, sample SampleFunc) ([]dc.Winner, error) {
	chosen := ps
	if len(ps) > k {
		var err error
		if chosen, err = sample(ps, k); err != nil {
			return nil, err
		}
	}
	out := make([]dc.Winner, len(chosen))
	for i, p := range chosen {
		out[i] = dc.Winner{ContestID: p.ContestID, UserID: p.UserID, Position: i + 1}
	}
	return out, nil
}

// SelectWinners ends an active contest and draws its winners atomically.
// A contest that already has winners returns them unchanged with
// created=false, so repeated calls never re-sample.
func (s *Service) SelectWinners(ctx context.Context, contestID int64) ([]dc.Winner, bool, error) {
	c, err := s.contests.GetByID(ctx, contestID)
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("get contest", err)
	}
	if c == nil {
		return nil, false, apperrors.NewContestNotFoundError(contestID)
	}

	k := c.WinnersCount
	winners, created, err := s.winners.Finish(ctx, contestID, func(ps []dc.Participant) ([]dc.Winner, error) {
		return Pick(ps, k, s.sample)
	})
	switch {
	case errors.Is(err, dc.ErrNotFound):
		return nil, false, apperrors.NewContestNotFoundError(contestID)
	case errors.Is(err, dc.ErrNotActive):
		return nil, false, apperrors.NewContestNotActiveError(contestID, string(c.Status))
	case err != nil:
		return nil, false, apperrors.NewDatabaseError("finish contest", err)
	}

	if created {
		logger.Info().
			Int64("contest_id", contestID).
			Str("from", string(dc.StatusActive)).
			Str("to", string(dc.StatusEnded)).
			Int("winners", len(winners)).
			Msg("Contest ended, winners selected")
	}
	return winners, created, nil
}

func (s *Service) GetWinners(ctx context.Context, contestID int64) ([]dc.Winner, error) {
	out, err := s.winners.ListByContest(ctx, contestID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list winners", err)
	}
	return out, nil
}

func (s *Service) MarkPrizeClaimed(ctx context.Context, contestID, userID int64) error {
	ok, err := s.winners.MarkPrizeClaimed(ctx, contestID, userID)
	if err != nil {
		return apperrors.NewDatabaseError("mark prize claimed", err)
	}
	if !ok {
		return apperrors.NewNotFoundError("winner", userID).WithDetail("contest_id", contestID)
	}
	if s.tracker != nil {
		s.tracker.Track(ctx, userID, analytics.EventPrizeClaimed, &contestID)
	}
	return nil
}

func (s *Service) UserWins(ctx context.Context, userID int64) ([]dc.Winner, error) {
	out, err := s.winners.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list user wins", err)
	}
	return out, nil
}

func (s *Service) UserStats(ctx context.Context, userID int64) (dc.WinnerStats, error) {
	st, err := s.winners.StatsByUser(ctx, userID)
	if err != nil {
		return dc.WinnerStats{}, apperrors.NewDatabaseError("user winner stats", err)
	}
	return st, nil
}
