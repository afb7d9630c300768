package participation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/repository/memory"
	"github.com/open-builders/contest-bot/internal/service/contest"
)

type staticGate struct {
	missing []int64
	calls   int
	block   bool
}

func (g *staticGate) CheckAll(ctx context.Context, _ int64, _ []int64) []int64 {
	g.calls++
	if g.block {
		<-ctx.Done()
		return nil
	}
	return g.missing
}

type staticReqs []int64

func (r staticReqs) RequiredChannels(context.Context, *dc.Contest) ([]int64, error) { return r, nil }

type countingTracker struct {
	mu     sync.Mutex
	events []analytics.EventType
}

func (t *countingTracker) Track(_ context.Context, _ int64, e analytics.EventType, _ *int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

type env struct {
	store    *memory.Store
	contests *contest.Service
}

func newEnv() *env {
	store := memory.NewStore()
	limits := dc.Limits{MaxDuration: 24 * time.Hour, MaxWinners: 10, MaxParticipants: 100}
	return &env{store: store, contests: contest.NewService(store.Contests(), store.Participants(), limits)}
}

func (e *env) activeContest(t *testing.T, max *int) *dc.Contest {
	t.Helper()
	ctx := context.Background()
	c, err := e.contests.Create(ctx, dc.CreateParams{OwnerID: 1, ChannelID: -10, Title: "j", WinnersCount: 1, MaxParticipants: max})
	require.NoError(t, err)
	_, err = e.contests.UpdateStatus(ctx, c.ID, dc.StatusActive)
	require.NoError(t, err)
	return c
}

func TestJoinTwiceIsAlreadyJoined(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tracker := &countingTracker{}
	svc := NewService(e.contests, e.store.Participants(), WithTracker(tracker))
	c := e.activeContest(t, nil)

	r, err := svc.Join(ctx, c.ID, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, dc.JoinResultJoined, r)

	r, err = svc.Join(ctx, c.ID, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, dc.JoinResultAlreadyJoined, r)

	n, err := svc.Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []analytics.EventType{analytics.EventContestJoined}, tracker.events)
}

func TestConcurrentJoinsSameUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	svc := NewService(e.contests, e.store.Participants())
	c := e.activeContest(t, nil)

	const n = 32
	results := make(chan dc.JoinResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Join(ctx, c.ID, 99, nil)
			if assert.NoError(t, err) {
				results <- r
			}
		}()
	}
	wg.Wait()
	close(results)

	joined := 0
	for r := range results {
		if r == dc.JoinResultJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
	count, err := e.store.Participants().Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJoinRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	t.Run("missing contest", func(t *testing.T) {
		svc := NewService(e.contests, e.store.Participants())
		_, err := svc.Join(ctx, 12345, 1, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContestNotFound))
	})

	t.Run("pending contest", func(t *testing.T) {
		c, err := e.contests.Create(ctx, dc.CreateParams{OwnerID: 1, ChannelID: -10, Title: "p", WinnersCount: 1})
		require.NoError(t, err)
		svc := NewService(e.contests, e.store.Participants())
		_, err = svc.Join(ctx, c.ID, 1, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContestNotActive))
	})

	t.Run("full contest", func(t *testing.T) {
		max := 1
		c := e.activeContest(t, &max)
		svc := NewService(e.contests, e.store.Participants())
		_, err := svc.Join(ctx, c.ID, 1, nil)
		require.NoError(t, err)
		_, err = svc.Join(ctx, c.ID, 2, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCapacityExceeded))

		r, err := svc.Join(ctx, c.ID, 1, nil)
		require.NoError(t, err, "an existing participant is not told the contest is full")
		assert.Equal(t, dc.JoinResultAlreadyJoined, r)
	})

	t.Run("not subscribed", func(t *testing.T) {
		c := e.activeContest(t, nil)
		gate := &staticGate{missing: []int64{-10}}
		svc := NewService(e.contests, e.store.Participants(), WithGate(gate, staticReqs{-10}))
		_, err := svc.Join(ctx, c.ID, 3, nil)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotSubscribed, appErr.Code)

		ok, err = svc.IsParticipating(ctx, c.ID, 3)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("gate timeout leaves no record", func(t *testing.T) {
		c := e.activeContest(t, nil)
		gate := &staticGate{block: true}
		svc := NewService(e.contests, e.store.Participants(), WithGate(gate, staticReqs{-10}))
		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := svc.Join(tctx, c.ID, 4, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsRetryable(err))

		ok, err := svc.IsParticipating(ctx, c.ID, 4)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSelfReferralDropped(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	svc := NewService(e.contests, e.store.Participants())
	c := e.activeContest(t, nil)

	self := int64(7)
	_, err := svc.Join(ctx, c.ID, 7, &self)
	require.NoError(t, err)
	other := int64(8)
	_, err = svc.Join(ctx, c.ID, 9, &other)
	require.NoError(t, err)

	ps, err := svc.List(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Nil(t, ps[0].ReferrerID)
	require.NotNil(t, ps[1].ReferrerID)
	assert.Equal(t, int64(8), *ps[1].ReferrerID)
}

// endingGate ends the contest while the membership check is in flight.
type endingGate struct {
	store     *memory.Store
	contestID int64
}

func (g *endingGate) CheckAll(ctx context.Context, _ int64, _ []int64) []int64 {
	_, _, _ = g.store.Winners().Finish(ctx, g.contestID, func([]dc.Participant) ([]dc.Winner, error) {
		return nil, nil
	})
	return nil
}

func TestJoinAfterContestEndedDuringGate(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	c := e.activeContest(t, nil)
	svc := NewService(e.contests, e.store.Participants(),
		WithGate(&endingGate{store: e.store, contestID: c.ID}, staticReqs{-10}))

	_, err := svc.Join(ctx, c.ID, 7, nil)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperrors.ErrCodeContestNotActive, appErr.Code)

	got, err := e.contests.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, dc.StatusEnded, got.Status)

	n, err := e.store.Participants().Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "no row lands after the draw")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	svc := NewService(e.contests, e.store.Participants())
	c := e.activeContest(t, nil)
	_, err := svc.Join(ctx, c.ID, 1, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, c.ID, 1))
	assert.True(t, apperrors.HasCode(svc.Remove(ctx, c.ID, 1), apperrors.ErrCodeNotFound))

	mine, err := svc.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
