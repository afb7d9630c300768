package winner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/repository/memory"
)

func seed(t *testing.T, store *memory.Store, winners int, users ...int64) *dc.Contest {
	t.Helper()
	ctx := context.Background()
	c := &dc.Contest{OwnerID: 1, ChannelID: -100, Title: "t", WinnersCount: winners, StartTime: time.Now(), Status: dc.StatusActive}
	require.NoError(t, store.Contests().Create(ctx, c))
	for _, u := range users {
		ok, err := store.Participants().Insert(ctx, &dc.Participant{ContestID: c.ID, UserID: u})
		require.NoError(t, err)
		require.True(t, ok)
	}
	return c
}

func TestPickEveryoneWinsInJoinOrder(t *testing.T) {
	ps := []dc.Participant{{UserID: 7}, {UserID: 3}, {UserID: 9}}
	called := false
	ws, err := Pick(ps, 5, func([]dc.Participant, int) ([]dc.Participant, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	require.Len(t, ws, 3)
	for i, want := range []int64{7, 3, 9} {
		assert.Equal(t, want, ws[i].UserID)
		assert.Equal(t, i+1, ws[i].Position)
	}
}

func TestPickSampleError(t *testing.T) {
	ps := []dc.Participant{{UserID: 1}, {UserID: 2}}
	_, err := Pick(ps, 1, func([]dc.Participant, int) ([]dc.Participant, error) {
		return nil, errors.New("entropy")
	})
	assert.Error(t, err)
}

func TestSelectWinnersSubsetAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := []int64{11, 12, 13, 14, 15, 16, 17, 18}
	c := seed(t, store, 3, users...)
	svc := NewService(store.Contests(), store.Winners(), nil)

	first, created, err := svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, first, 3)

	seen := map[int64]bool{}
	for i, w := range first {
		assert.Contains(t, users, w.UserID)
		assert.False(t, seen[w.UserID], "duplicate winner")
		seen[w.UserID] = true
		assert.Equal(t, i+1, w.Position)
	}

	again, created, err := svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.ElementsMatch(t, first, again)

	got, err := store.Contests().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, dc.StatusEnded, got.Status)

	ps, err := store.Participants().List(ctx, c.ID, 0)
	require.NoError(t, err)
	flagged := 0
	for _, p := range ps {
		if p.IsWinner {
			flagged++
			assert.True(t, seen[p.UserID])
		}
	}
	assert.Equal(t, 3, flagged)
}

func TestSelectWinnersPositionsFollowSampleOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := seed(t, store, 2, 21, 22, 23, 24)
	svc := NewService(store.Contests(), store.Winners(), nil).
		WithSampler(func(ps []dc.Participant, k int) ([]dc.Participant, error) {
			out := make([]dc.Participant, 0, k)
			for i := len(ps) - 1; len(out) < k; i-- {
				out = append(out, ps[i])
			}
			return out, nil
		})

	ws, created, err := svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, ws, 2)
	assert.Equal(t, int64(24), ws[0].UserID)
	assert.Equal(t, 1, ws[0].Position)
	assert.Equal(t, int64(23), ws[1].UserID)
	assert.Equal(t, 2, ws[1].Position)
}

func TestSelectWinnersEmptyContest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := seed(t, store, 2)
	svc := NewService(store.Contests(), store.Winners(), nil)

	ws, created, err := svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, ws)

	ws, created, err = svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, ws)
}

func TestSelectWinnersRejectsPendingAndMissing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := &dc.Contest{OwnerID: 1, ChannelID: -1, Title: "p", WinnersCount: 1, StartTime: time.Now(), Status: dc.StatusPending}
	require.NoError(t, store.Contests().Create(ctx, c))
	svc := NewService(store.Contests(), store.Winners(), nil)

	_, _, err := svc.SelectWinners(ctx, c.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContestNotActive))

	_, _, err = svc.SelectWinners(ctx, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContestNotFound))
}

func TestSamplingIsRoughlyUniform(t *testing.T) {
	ps := make([]dc.Participant, 5)
	for i := range ps {
		ps[i] = dc.Participant{UserID: int64(i + 1)}
	}
	svc := NewService(nil, nil, nil)
	hits := map[int64]int{}
	const rounds = 5000
	for i := 0; i < rounds; i++ {
		ws, err := Pick(ps, 2, svc.sample)
		require.NoError(t, err)
		for _, w := range ws {
			hits[w.UserID]++
		}
	}
	// Each participant is expected in 2/5 of the draws.
	for id, n := range hits {
		assert.InDelta(t, rounds*2/5, n, rounds/10, "user %d", id)
	}
}

func TestPrizeClaimAndStats(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := seed(t, store, 1, 42)
	svc := NewService(store.Contests(), store.Winners(), nil)

	_, _, err := svc.SelectWinners(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, svc.MarkPrizeClaimed(ctx, c.ID, 42))
	err = svc.MarkPrizeClaimed(ctx, c.ID, 43)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	st, err := svc.UserStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, dc.WinnerStats{TotalWins: 1, FirstPlaceWins: 1, ClaimedPrizes: 1}, st)

	wins, err := svc.UserWins(ctx, 42)
	require.NoError(t, err)
	require.Len(t, wins, 1)
	assert.True(t, wins[0].PrizeClaimed)
}
