package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/repository/memory"
	"github.com/open-builders/contest-bot/internal/service/contest"
	"github.com/open-builders/contest-bot/internal/service/participation"
	"github.com/open-builders/contest-bot/internal/service/winner"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAnnouncer struct {
	mu       sync.Mutex
	started  []int64
	finished map[int64][]dc.Winner
	fail     bool
	nextMsg  int
}

func (a *fakeAnnouncer) AnnounceContestStart(_ context.Context, c *dc.Contest) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, c.ID)
	if a.fail {
		return 0, errors.New("bot was kicked from the channel")
	}
	a.nextMsg++
	return a.nextMsg, nil
}

func (a *fakeAnnouncer) AnnounceWinners(_ context.Context, c *dc.Contest, ws []dc.Winner) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished == nil {
		a.finished = map[int64][]dc.Winner{}
	}
	if _, dup := a.finished[c.ID]; dup {
		panic("winners announced twice")
	}
	a.finished[c.ID] = ws
	if a.fail {
		return errors.New("message delivery failed")
	}
	return nil
}

type fixture struct {
	clock     *fakeClock
	store     *memory.Store
	contests  *contest.Service
	joins     *participation.Service
	announcer *fakeAnnouncer
	sched     *Scheduler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := memory.NewStore().WithClock(clock.Now)
	limits := dc.Limits{MaxDuration: 30 * 24 * time.Hour, MaxWinners: 100, MaxParticipants: 10000}
	contests := contest.NewService(store.Contests(), store.Participants(), limits).WithClock(clock.Now)
	winners := winner.NewService(store.Contests(), store.Winners(), nil)
	ann := &fakeAnnouncer{}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		clock:     clock,
		store:     store,
		contests:  contests,
		joins:     participation.NewService(contests, store.Participants()),
		announcer: ann,
		sched:     New(contests, winners, ann, 30*time.Second, opts...),
	}
}

func (f *fixture) status(t *testing.T, id int64) dc.Status {
	t.Helper()
	c, err := f.contests.Get(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func TestCapacityContestEndsAfterFill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	max := 3
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Cap", WinnersCount: 3,
		StartTime: f.clock.Now(), MaxParticipants: &max,
	})
	require.NoError(t, err)

	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Activated)
	assert.Equal(t, dc.StatusActive, f.status(t, c.ID))

	got, err := f.contests.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MessageID)
	assert.Equal(t, 1, *got.MessageID)

	for _, u := range []int64{101, 102, 103} {
		r, err := f.joins.Join(ctx, c.ID, u, nil)
		require.NoError(t, err)
		assert.Equal(t, dc.JoinResultJoined, r)
	}
	_, err = f.joins.Join(ctx, c.ID, 104, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCapacityExceeded))

	res, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ended)
	assert.Equal(t, dc.StatusEnded, f.status(t, c.ID))

	ws := f.announcer.finished[c.ID]
	require.Len(t, ws, 3)
	users := map[int64]bool{}
	for i, w := range ws {
		assert.Equal(t, i+1, w.Position)
		users[w.UserID] = true
	}
	assert.Equal(t, map[int64]bool{101: true, 102: true, 103: true}, users)
}

func TestTimeContestEndsOnNextTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.clock.Now().Add(30 * time.Second)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Timed", WinnersCount: 5,
		StartTime: f.clock.Now(), EndTime: &end,
	})
	require.NoError(t, err)

	_, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	for _, u := range []int64{7, 8} {
		_, err := f.joins.Join(ctx, c.ID, u, nil)
		require.NoError(t, err)
	}

	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Ended, "end time not reached yet")

	f.clock.Advance(30 * time.Second)
	res, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ended)
	assert.Equal(t, dc.StatusEnded, f.status(t, c.ID))
	assert.Len(t, f.announcer.finished[c.ID], 2)
}

func TestTickIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.clock.Now().Add(time.Minute)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Twice", WinnersCount: 1,
		StartTime: f.clock.Now(), EndTime: &end,
	})
	require.NoError(t, err)

	seen := []dc.Status{f.status(t, c.ID)}
	record := func() {
		if st := f.status(t, c.ID); st != seen[len(seen)-1] {
			seen = append(seen, st)
		}
	}

	for i := 0; i < 3; i++ {
		_, err := f.sched.Tick(ctx)
		require.NoError(t, err)
		record()
	}
	assert.Equal(t, []int64{c.ID}, f.announcer.started)

	for _, u := range []int64{1, 2, 3, 4} {
		_, err := f.joins.Join(ctx, c.ID, u, nil)
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := f.sched.Tick(ctx)
		require.NoError(t, err)
		record()
	}

	first := f.announcer.finished[c.ID]
	require.Len(t, first, 1)
	again, created, err := winner.NewService(f.store.Contests(), f.store.Winners(), nil).SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first[0].UserID, again[0].UserID)

	assert.Equal(t, []dc.Status{dc.StatusPending, dc.StatusActive, dc.StatusEnded}, seen)
}

func TestConcurrentTicksAnnounceOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	end := f.clock.Now().Add(time.Minute)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Race", WinnersCount: 2,
		StartTime: f.clock.Now(), EndTime: &end,
	})
	require.NoError(t, err)
	_, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	for _, u := range []int64{1, 2, 3} {
		_, err := f.joins.Join(ctx, c.ID, u, nil)
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.sched.Tick(ctx)
		}()
	}
	wg.Wait()

	assert.Len(t, f.announcer.finished, 1)
	assert.Len(t, f.announcer.finished[c.ID], 2)
}

func TestDeliveryFailureKeepsTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.announcer.fail = true
	end := f.clock.Now().Add(time.Minute)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Kicked", WinnersCount: 1,
		StartTime: f.clock.Now(), EndTime: &end,
	})
	require.NoError(t, err)

	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Activated)
	assert.Equal(t, dc.StatusActive, f.status(t, c.ID))

	f.clock.Advance(2 * time.Minute)
	res, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ended)
	assert.Equal(t, dc.StatusEnded, f.status(t, c.ID))
}

func TestCancelledContestIsNeverActivated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Gone", WinnersCount: 1,
		StartTime: f.clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	_, err = f.contests.Cancel(ctx, c.ID, 1, false)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Activated)
	assert.Equal(t, dc.StatusCancelled, f.status(t, c.ID))
	assert.Empty(t, f.announcer.started)
}

func TestManualEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Manual", WinnersCount: 1, StartTime: f.clock.Now(),
	})
	require.NoError(t, err)
	_, err = f.sched.Tick(ctx)
	require.NoError(t, err)
	_, err = f.joins.Join(ctx, c.ID, 9, nil)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Ended, "manual contests never end on their own")

	ended, err := f.sched.End(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ended)
	ended, err = f.sched.End(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Len(t, f.announcer.finished[c.ID], 1)
}

type heldLock struct{ calls int }

func (l *heldLock) TryLock(context.Context, string, time.Duration) (func(context.Context), error) {
	l.calls++
	return nil, nil
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	lock := &heldLock{}
	f := newFixture(t, WithLocker(lock, time.Second))
	_, err := f.contests.Create(ctx, dc.CreateParams{
		OwnerID: 1, ChannelID: -100, Title: "Locked", WinnersCount: 1, StartTime: f.clock.Now(),
	})
	require.NoError(t, err)

	res, err := f.sched.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, lock.calls)
	assert.Empty(t, f.announcer.started)
}

func TestStartStopRunsJobs(t *testing.T) {
	f := newFixture(t)
	ran := make(chan struct{}, 1)
	job := Job{Name: "probe", Interval: time.Hour, Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}
	s := New(f.contests, winner.NewService(f.store.Contests(), f.store.Winners(), nil), f.announcer, time.Hour, WithJobs(job))

	s.Start(context.Background())
	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	s.Stop()
}
