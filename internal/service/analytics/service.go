package analytics

import (
	"context"
	"time"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
)

// Service records best-effort events and builds the admin overview.
type Service struct {
	events       analytics.Repository
	users        user.Repository
	contests     dc.Repository
	participants dc.ParticipantRepository
	winners      dc.WinnerRepository
	now          func() time.Time
}

func NewService(
	events analytics.Repository,
	users user.Repository,
	contests dc.Repository,
	participants dc.ParticipantRepository,
	winners dc.WinnerRepository,
) *Service {
	return &Service{
		events:       events,
		users:        users,
		contests:     contests,
		participants: participants,
		winners:      winners,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Track never fails the caller.
func (s *Service) Track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64) {
	e := &analytics.Event{UserID: userID, Type: t, ContestID: contestID, CreatedAt: s.now()}
	if err := s.events.Insert(ctx, e); err != nil {
		logger.Debug().Err(err).Str("event", string(t)).Msg("Analytics event dropped")
	}
}

func (s *Service) Overview(ctx context.Context) (*analytics.Overview, error) {
	now := s.now()
	out := &analytics.Overview{ContestsByStatus: map[string]int{}, GeneratedAt: now}

	var err error
	if out.Users, err = s.users.Count(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("count users", err)
	}
	counts, err := s.contests.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count contests", err)
	}
	for _, st := range []dc.Status{dc.StatusPending, dc.StatusActive, dc.StatusEnded, dc.StatusCancelled} {
		out.ContestsByStatus[string(st)] = counts[st]
	}
	if out.Participants, err = s.participants.CountAll(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("count participants", err)
	}
	if out.Winners, err = s.winners.CountAll(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("count winners", err)
	}
	if out.EventsLast24h, err = s.events.CountSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return nil, apperrors.NewDatabaseError("count events", err)
	}
	return out, nil
}

// Prune deletes events older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.events.DeleteBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, apperrors.NewDatabaseError("prune analytics", err)
	}
	if n > 0 {
		logger.Info().Int64("deleted", n).Msg("Analytics events pruned")
	}
	return n, nil
}
