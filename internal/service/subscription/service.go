package subscription

import (
	"context"
	"time"

	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
)

// MembershipChecker performs the live lookup.
type MembershipChecker interface {
	GetMembershipStatus(ctx context.Context, chatID, userID int64) (telegram.MembershipStatus, error)
}

// Cache stores verdicts for a short TTL. It is never authoritative.
type Cache interface {
	Get(ctx context.Context, userID, channelID int64) (member bool, found bool, err error)
	Set(ctx context.Context, userID, channelID int64, member bool) error
	Invalidate(ctx context.Context, userID int64) error
}

// Service is the subscription gate in front of joins.
type Service struct {
	checker MembershipChecker
	cache   Cache
	timeout time.Duration
}

func NewService(checker MembershipChecker, cache Cache, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{checker: checker, cache: cache, timeout: timeout}
}

// CheckMembership fails closed: lookup errors, timeouts and unknown
// statuses all count as not subscribed. Only definite answers are cached.
func (s *Service) CheckMembership(ctx context.Context, userID, channelID int64) bool {
	if s.cache != nil {
		member, found, err := s.cache.Get(ctx, userID, channelID)
		if err != nil {
			logger.Debug().Err(err).Msg("Subscription cache read failed")
		} else if found {
			return member
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.checker.GetMembershipStatus(lookupCtx, channelID, userID)
	if err != nil {
		logger.Warn().
			Err(err).
			Int64("user_id", userID).
			Int64("channel_id", channelID).
			Msg("Membership lookup failed, treating as not subscribed")
		return false
	}
	if status == telegram.StatusUnknown {
		return false
	}

	member := status == telegram.StatusMember
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, channelID, member); err != nil {
			logger.Debug().Err(err).Msg("Subscription cache write failed")
		}
	}
	return member
}

// CheckAll returns the channels the user is missing, in input order.
func (s *Service) CheckAll(ctx context.Context, userID int64, channelIDs []int64) []int64 {
	var missing []int64
	seen := make(map[int64]bool, len(channelIDs))
	for _, id := range channelIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		if !s.CheckMembership(ctx, userID, id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Forget drops cached verdicts, used when the user says they just subscribed.
func (s *Service) Forget(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.Debug().Err(err).Int64("user_id", userID).Msg("Subscription cache invalidation failed")
	}
}
