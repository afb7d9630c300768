package user

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	domain "github.com/open-builders/contest-bot/internal/domain/user"
)

// JSONCache is the cache surface the service needs.
type JSONCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service orchestrates user access with repository and cache.
type Service struct {
	repo  domain.Repository
	cache JSONCache
	ttl   time.Duration
}

func NewService(repo domain.Repository, cache JSONCache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func cacheKey(id int64) string { return fmt.Sprintf("user:id:%d", id) }

// GetByID returns nil, nil when the user is unknown.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if s.cache != nil {
		var u domain.User
		if err := s.cache.Get(ctx, cacheKey(id), &u); err == nil {
			return &u, nil
		}
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get user", err)
	}
	if u != nil && s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey(id), u, s.ttl)
	}
	return u, nil
}

// Touch upserts the Telegram profile seen on an update.
func (s *Service) Touch(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == 0 {
		return apperrors.NewValidationError("id", "is required")
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return apperrors.NewDatabaseError("upsert user", err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(u.ID))
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	out, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list users", err)
	}
	return out, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count users", err)
	}
	return n, nil
}

// SetBanned blocks or unblocks a user. Banned users are skipped by
// broadcasts and rejected by the API.
func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	ok, err := s.repo.SetBanned(ctx, id, banned)
	if err != nil {
		return apperrors.NewDatabaseError("set banned", err)
	}
	if !ok {
		return apperrors.NewUserNotFoundError(id)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(id))
	}
	logger.Info().Int64("user_id", id).Bool("banned", banned).Msg("User ban flag changed")
	return nil
}

// DisplayNames resolves ids to @usernames or names, "User <id>" when unknown.
func (s *Service) DisplayNames(ctx context.Context, ids []int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		u, err := s.GetByID(ctx, id)
		if err != nil || u == nil {
			out[id] = fmt.Sprintf("User %d", id)
			continue
		}
		out[id] = u.DisplayName()
	}
	return out
}
