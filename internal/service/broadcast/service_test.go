package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/user"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
	"github.com/open-builders/contest-bot/internal/repository/memory"
)

type blockedSender struct {
	mu      sync.Mutex
	to      []int64
	blocked map[int64]bool
}

func (s *blockedSender) SendMessage(_ context.Context, chatID int64, _ string, _ ...[]telegram.Button) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked[chatID] {
		return 0, errors.New("Forbidden: bot was blocked by the user")
	}
	s.to = append(s.to, chatID)
	return 1, nil
}

func TestBroadcastFanOut(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for id := int64(1); id <= 5; id++ {
		require.NoError(t, store.Users().Upsert(ctx, &user.User{ID: id}))
	}
	tg := &blockedSender{blocked: map[int64]bool{3: true}}
	svc := NewService(store.Broadcasts(), store.Users(), tg, 1000)

	b, err := svc.Start(ctx, 99, "  Hello everyone  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello everyone", b.Text)
	svc.Wait()

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCompleted, got.Status)
	assert.Equal(t, 4, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, []int64{1, 2, 4, 5}, tg.to)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBroadcastValidation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Broadcasts(), store.Users(), &blockedSender{}, 10)

	_, err := svc.Start(context.Background(), 1, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	_, err = svc.Get(context.Background(), 42)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}
