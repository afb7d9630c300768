package broadcast

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/common/validation"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/user"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
)

const (
	pageSize      = 500
	progressEvery = 100
)

// Sender delivers one message.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, rows ...[]telegram.Button) (int, error)
}

// Service fans admin messages out to every non-banned user at a bounded
// rate, recording progress as it goes.
type Service struct {
	repo  broadcast.Repository
	users user.Repository
	tg    Sender
	rate  int

	wg sync.WaitGroup
}

func NewService(repo broadcast.Repository, users user.Repository, tg Sender, perSecond int) *Service {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &Service{repo: repo, users: users, tg: tg, rate: perSecond}
}

// Start stores a pending broadcast and sends it in the background. The
// send outlives the request; ctx only scopes the insert.
func (s *Service) Start(ctx context.Context, adminID int64, text string) (*broadcast.Broadcast, error) {
	text = strings.TrimSpace(text)
	if err := validation.Required("text", text, validation.MaxMessageLength); err != nil {
		return nil, err
	}
	b := &broadcast.Broadcast{AdminID: adminID, Text: text, Status: broadcast.StatusPending}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, apperrors.NewDatabaseError("create broadcast", err)
	}

	s.wg.Add(1)
	go func(b broadcast.Broadcast) {
		defer s.wg.Done()
		if err := s.Send(context.WithoutCancel(ctx), &b); err != nil {
			logger.Error().Err(err).Int64("broadcast_id", b.ID).Msg("Broadcast failed")
		}
	}(*b)
	return b, nil
}

// Wait blocks until background sends finish.
func (s *Service) Wait() { s.wg.Wait() }

// Send delivers b to every user page by page. Individual delivery failures
// are counted, not returned.
func (s *Service) Send(ctx context.Context, b *broadcast.Broadcast) error {
	if err := s.repo.UpdateProgress(ctx, b.ID, broadcast.StatusSending, 0, 0); err != nil {
		return apperrors.NewDatabaseError("start broadcast", err)
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.rate))
	defer ticker.Stop()

	sent, failed := 0, 0
	var after int64
	for {
		ids, err := s.users.ListIDs(ctx, after, pageSize)
		if err != nil {
			_ = s.repo.UpdateProgress(ctx, b.ID, broadcast.StatusFailed, sent, failed)
			return apperrors.NewDatabaseError("list broadcast recipients", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			select {
			case <-ctx.Done():
				_ = s.repo.UpdateProgress(context.WithoutCancel(ctx), b.ID, broadcast.StatusFailed, sent, failed)
				return ctx.Err()
			case <-ticker.C:
			}
			if _, err := s.tg.SendMessage(ctx, id, b.Text); err != nil {
				failed++
				logger.Debug().Err(err).Int64("user_id", id).Msg("Broadcast message not delivered")
			} else {
				sent++
			}
			if (sent+failed)%progressEvery == 0 {
				_ = s.repo.UpdateProgress(ctx, b.ID, broadcast.StatusSending, sent, failed)
			}
		}
		after = ids[len(ids)-1]
	}

	if err := s.repo.UpdateProgress(ctx, b.ID, broadcast.StatusCompleted, sent, failed); err != nil {
		return apperrors.NewDatabaseError("complete broadcast", err)
	}
	logger.Info().Int64("broadcast_id", b.ID).Int("sent", sent).Int("failed", failed).Msg("Broadcast completed")
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*broadcast.Broadcast, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get broadcast", err)
	}
	if b == nil {
		return nil, apperrors.NewNotFoundError("broadcast", id)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]broadcast.Broadcast, error) {
	out, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list broadcasts", err)
	}
	return out, nil
}
