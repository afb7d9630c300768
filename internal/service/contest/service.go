package contest

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/common/validation"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

const DefaultButtonText = "🤝 Participate"

// Invalidator drops cached views of a contest after it changes.
type Invalidator interface {
	InvalidateContest(ctx context.Context, contestID int64) error
}

// Service is the contest registry: it owns contest records and is the only
// writer of their status.
type Service struct {
	contests     dc.Repository
	participants dc.ParticipantRepository
	limits       dc.Limits
	cache        Invalidator
	now          func() time.Time
}

func NewService(contests dc.Repository, participants dc.ParticipantRepository, limits dc.Limits) *Service {
	return &Service{
		contests:     contests,
		participants: participants,
		limits:       limits,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCache enables best-effort cache invalidation.
func (s *Service) WithCache(c Invalidator) *Service {
	s.cache = c
	return s
}

func (s *Service) Now() time.Time { return s.now() }

// Validate checks creation caps and returns the first violation.
func (s *Service) Validate(p *dc.CreateParams, now time.Time) error {
	if p.OwnerID == 0 {
		return apperrors.NewValidationError("owner_id", "is required")
	}
	if p.ChannelID == 0 {
		return apperrors.NewValidationError("channel_id", "is required")
	}
	if err := validation.Required("title", p.Title, validation.MaxTitleLength); err != nil {
		return err
	}
	if err := validation.MaxLength("description", p.Description, validation.MaxDescriptionLength); err != nil {
		return err
	}
	if err := validation.MaxLength("prize_description", p.PrizeDescription, validation.MaxPrizeLength); err != nil {
		return err
	}
	if err := validation.MaxLength("button_text", p.ButtonText, validation.MaxButtonTextLength); err != nil {
		return err
	}
	if err := validation.Between("winners_count", p.WinnersCount, 1, s.limits.MaxWinners); err != nil {
		return err
	}
	if p.EndTime != nil && p.MaxParticipants != nil {
		return apperrors.NewValidationError("end_time", "cannot be combined with max_participants")
	}

	latest := now.Add(s.limits.MaxDuration)
	if p.StartTime.After(latest) {
		return apperrors.NewValidationError("start_time", fmt.Sprintf("must be within %s of creation", s.limits.MaxDuration))
	}
	if p.EndTime != nil {
		if !p.EndTime.After(p.StartTime) {
			return apperrors.NewValidationError("end_time", "must be after start_time")
		}
		if !p.EndTime.After(now) {
			return apperrors.NewValidationError("end_time", "must be in the future")
		}
		if p.EndTime.After(latest) {
			return apperrors.NewValidationError("end_time", fmt.Sprintf("must be within %s of creation", s.limits.MaxDuration))
		}
	}
	if p.MaxParticipants != nil {
		if err := validation.Between("max_participants", *p.MaxParticipants, 1, s.limits.MaxParticipants); err != nil {
			return err
		}
	}
	return nil
}

// Create validates p and stores a pending contest with zero counters.
func (s *Service) Create(ctx context.Context, p dc.CreateParams) (*dc.Contest, error) {
	now := s.now()
	if p.StartTime.IsZero() {
		p.StartTime = now
	}
	if err := s.Validate(&p, now); err != nil {
		return nil, err
	}

	c := &dc.Contest{
		OwnerID:          p.OwnerID,
		ChannelID:        p.ChannelID,
		Title:            strings.TrimSpace(p.Title),
		Description:      strings.TrimSpace(p.Description),
		ImageFileID:      p.ImageFileID,
		ButtonText:       strings.TrimSpace(p.ButtonText),
		PrizeDescription: strings.TrimSpace(p.PrizeDescription),
		WinnersCount:     p.WinnersCount,
		StartTime:        p.StartTime.UTC(),
		MaxParticipants:  p.MaxParticipants,
		Status:           dc.StatusPending,
	}
	if p.EndTime != nil {
		end := p.EndTime.UTC()
		c.EndTime = &end
	}
	if c.ButtonText == "" {
		c.ButtonText = DefaultButtonText
	}
	if err := s.contests.Create(ctx, c); err != nil {
		return nil, apperrors.NewDatabaseError("create contest", err)
	}

	logger.Info().
		Int64("contest_id", c.ID).
		Int64("owner_id", c.OwnerID).
		Str("end_condition", string(c.EndCondition())).
		Msg("Contest created")
	return c, nil
}

// Get returns the contest or a CONTEST_NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id int64) (*dc.Contest, error) {
	c, err := s.contests.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get contest", err)
	}
	if c == nil {
		return nil, apperrors.NewContestNotFoundError(id)
	}
	return c, nil
}

// UpdateStatus moves a contest forward. It is a no-op when the contest is
// already in the target status and reports whether this call changed it.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to dc.Status) (bool, error) {
	if !to.Valid() {
		return false, apperrors.NewValidationError("status", "unknown status")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if c.Status == to {
		return false, nil
	}
	if !c.Status.CanTransitionTo(to) {
		return false, apperrors.NewInvalidTransitionError(id, string(c.Status), string(to))
	}

	from := []dc.Status{c.Status}
	if to == dc.StatusCancelled {
		from = []dc.Status{dc.StatusPending, dc.StatusActive}
	}
	changed, err := s.contests.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return false, apperrors.NewDatabaseError("transition contest", err)
	}
	if !changed {
		// Lost a race: re-read to tell a concurrent identical move from a conflict.
		cur, err := s.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if cur.Status == to {
			return false, nil
		}
		return false, apperrors.NewInvalidTransitionError(id, string(cur.Status), string(to))
	}

	s.invalidate(ctx, id)
	logger.Info().
		Int64("contest_id", id).
		Str("from", string(c.Status)).
		Str("to", string(to)).
		Msg("Contest status changed")
	return true, nil
}

// Cancel stops a pending or active contest without drawing winners. Only
// the owner or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, isAdmin bool) (bool, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !isAdmin && c.OwnerID != actorID {
		return false, apperrors.New(apperrors.ErrCodeNotOwner, "Only the contest owner can do this").
			WithDetail("contest_id", id)
	}
	return s.UpdateStatus(ctx, id, dc.StatusCancelled)
}

func (s *Service) ListActivatable(ctx context.Context, now time.Time) ([]dc.Contest, error) {
	out, err := s.contests.ListActivatable(ctx, now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list activatable contests", err)
	}
	return out, nil
}

// ListEndable re-checks each candidate against the ledger count so that a
// stale counter never ends a contest early.
func (s *Service) ListEndable(ctx context.Context, now time.Time) ([]dc.Contest, error) {
	candidates, err := s.contests.ListEndable(ctx, now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list endable contests", err)
	}
	out := candidates[:0]
	for _, c := range candidates {
		count := 0
		if c.EndCondition() == dc.EndByCapacity {
			if count, err = s.participants.Count(ctx, c.ID); err != nil {
				return nil, apperrors.NewDatabaseError("count participants", err)
			}
		}
		if c.IsEndable(now, count) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) RecordPosting(ctx context.Context, id int64, messageID int) error {
	if err := s.contests.RecordPosting(ctx, id, messageID); err != nil {
		if err == dc.ErrNotFound {
			return apperrors.NewContestNotFoundError(id)
		}
		return apperrors.NewDatabaseError("record posting", err)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) IncrementViews(ctx context.Context, id int64) error {
	if err := s.contests.IncrementViews(ctx, id); err != nil {
		if err == dc.ErrNotFound {
			return apperrors.NewContestNotFoundError(id)
		}
		return apperrors.NewDatabaseError("increment views", err)
	}
	return nil
}

// Delete is the admin escape hatch; participants and winners go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.contests.Delete(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete contest", err)
	}
	if !deleted {
		return apperrors.NewContestNotFoundError(id)
	}
	s.invalidate(ctx, id)
	logger.Warn().Int64("contest_id", id).Msg("Contest deleted")
	return nil
}

func (s *Service) Search(ctx context.Context, f dc.ListFilter) ([]dc.Contest, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.NewValidationError("status", "unknown status")
	}
	out, err := s.contests.Search(ctx, f)
	if err != nil {
		return nil, apperrors.NewDatabaseError("search contests", err)
	}
	return out, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dc.Contest, error) {
	return s.Search(ctx, dc.ListFilter{OwnerID: ownerID, Limit: limit, Offset: offset})
}

// Trending lists active contests by view count.
func (s *Service) Trending(ctx context.Context, limit int) ([]dc.Contest, error) {
	return s.Search(ctx, dc.ListFilter{Status: dc.StatusActive, OrderBy: "views", Limit: limit})
}

func (s *Service) CountByStatus(ctx context.Context) (dc.StatusCounts, error) {
	out, err := s.contests.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count contests", err)
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateContest(ctx, id); err != nil {
		logger.Debug().Err(err).Int64("contest_id", id).Msg("Contest cache invalidation failed")
	}
}
