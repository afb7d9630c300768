package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/contest-bot/internal/domain/contest"
)

func newActiveContest(t *testing.T, s *Store, max *int) *contest.Contest {
	t.Helper()
	c := &contest.Contest{
		OwnerID:         1,
		ChannelID:       -100,
		Title:           "Giveaway",
		WinnersCount:    2,
		StartTime:       time.Now(),
		Status:          contest.StatusActive,
		MaxParticipants: max,
	}
	require.NoError(t, s.Contests().Create(context.Background(), c))
	return c
}

func TestParticipantInsertIsUniqueUnderConcurrency(t *testing.T) {
	s := NewStore()
	c := newActiveContest(t, s, nil)
	repo := s.Participants()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Insert(context.Background(), &contest.Participant{ContestID: c.ID, UserID: 42})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	n, err := repo.Count(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestParticipantCountCacheIsClamped(t *testing.T) {
	s := NewStore()
	max := 2
	c := newActiveContest(t, s, &max)
	ctx := context.Background()

	for uid := int64(1); uid <= 3; uid++ {
		_, err := s.Participants().Insert(ctx, &contest.Participant{ContestID: c.ID, UserID: uid})
		require.NoError(t, err)
	}

	got, err := s.Contests().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)

	n, err := s.Participants().Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "ledger count stays authoritative")

	endable, err := s.Contests().ListEndable(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, endable, 1)
	assert.Equal(t, c.ID, endable[0].ID)
}

func TestFinishIsIdempotent(t *testing.T) {
	s := NewStore()
	c := newActiveContest(t, s, nil)
	ctx := context.Background()
	for uid := int64(1); uid <= 3; uid++ {
		_, err := s.Participants().Insert(ctx, &contest.Participant{ContestID: c.ID, UserID: uid})
		require.NoError(t, err)
	}

	calls := 0
	pick := func(ps []contest.Participant) ([]contest.Winner, error) {
		calls++
		return []contest.Winner{{UserID: ps[2].UserID, Position: 1}}, nil
	}

	first, created, err := s.Winners().Finish(ctx, c.ID, pick)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.Winners().Finish(ctx, c.ID, pick)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	got, err := s.Contests().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusEnded, got.Status)

	ps, err := s.Participants().List(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.True(t, ps[2].IsWinner)
	assert.False(t, ps[0].IsWinner)
}

func TestFinishRejectsPendingContest(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := &contest.Contest{Title: "later", WinnersCount: 1, Status: contest.StatusPending, StartTime: time.Now()}
	require.NoError(t, s.Contests().Create(ctx, c))

	_, _, err := s.Winners().Finish(ctx, c.ID, func([]contest.Participant) ([]contest.Winner, error) { return nil, nil })
	assert.ErrorIs(t, err, contest.ErrNotActive)

	_, _, err = s.Winners().Finish(ctx, 999, nil)
	assert.ErrorIs(t, err, contest.ErrNotFound)
}

func TestSearchFiltersAndPages(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i, title := range []string{"Summer Giveaway", "Winter raffle", "Summer cup"} {
		c := &contest.Contest{OwnerID: int64(i%2 + 1), Title: title, Status: contest.StatusPending, WinnersCount: 1}
		require.NoError(t, s.Contests().Create(ctx, c))
	}

	got, err := s.Contests().Search(ctx, contest.ListFilter{Query: "summer"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Contests().Search(ctx, contest.ListFilter{OwnerID: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Winter raffle", got[0].Title)

	got, err = s.Contests().Search(ctx, contest.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Winter raffle", got[0].Title)
}

func TestParticipantInsertRequiresActiveContest(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.Participants().Insert(ctx, &contest.Participant{ContestID: 999, UserID: 1})
	assert.ErrorIs(t, err, contest.ErrNotFound)

	c := newActiveContest(t, s, nil)
	_, _, err = s.Winners().Finish(ctx, c.ID, func([]contest.Participant) ([]contest.Winner, error) { return nil, nil })
	require.NoError(t, err)

	ok, err := s.Participants().Insert(ctx, &contest.Participant{ContestID: c.ID, UserID: 1})
	assert.ErrorIs(t, err, contest.ErrNotActive)
	assert.False(t, ok)
	n, err := s.Participants().Count(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemoveRecountsClampedCounter(t *testing.T) {
	s := NewStore()
	max := 3
	c := newActiveContest(t, s, &max)
	ctx := context.Background()
	for uid := int64(1); uid <= 4; uid++ {
		_, err := s.Participants().Insert(ctx, &contest.Participant{ContestID: c.ID, UserID: uid})
		require.NoError(t, err)
	}

	ok, err := s.Participants().Remove(ctx, c.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Contests().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ParticipantCount, "three rows remain, at the cap")

	_, err = s.Participants().Remove(ctx, c.ID, 3)
	require.NoError(t, err)
	got, err = s.Contests().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)
}
