package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
	"github.com/open-builders/contest-bot/internal/repository/memory"
)

func TestOverviewAndPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore().WithClock(clock)
	svc := NewService(store.Analytics(), store.Users(), store.Contests(), store.Participants(), store.Winners()).WithClock(clock)

	require.NoError(t, store.Users().Upsert(ctx, &user.User{ID: 1}))
	require.NoError(t, store.Users().Upsert(ctx, &user.User{ID: 2}))
	c := &dc.Contest{OwnerID: 1, ChannelID: -1, Title: "x", WinnersCount: 1, StartTime: now, Status: dc.StatusActive}
	require.NoError(t, store.Contests().Create(ctx, c))
	_, err := store.Participants().Insert(ctx, &dc.Participant{ContestID: c.ID, UserID: 2})
	require.NoError(t, err)

	svc.Track(ctx, 2, analytics.EventContestJoined, &c.ID)
	svc.WithClock(func() time.Time { return now.Add(-48 * time.Hour) })
	svc.Track(ctx, 1, analytics.EventBotStarted, nil)
	svc.WithClock(clock)

	ov, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.Users)
	assert.Equal(t, 1, ov.ContestsByStatus["active"])
	assert.Equal(t, 0, ov.ContestsByStatus["ended"])
	assert.Equal(t, 1, ov.Participants)
	assert.Equal(t, 0, ov.Winners)
	assert.Equal(t, map[analytics.EventType]int{analytics.EventContestJoined: 1}, ov.EventsLast24h)

	n, err := svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
