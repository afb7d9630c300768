// Package scheduler drives contest status transitions from a periodic
// reconciliation tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

const lockKey = "scheduler:tick"

// Registry is the contest registry surface the scheduler drives.
type Registry interface {
	ListActivatable(ctx context.Context, now time.Time) ([]dc.Contest, error)
	ListEndable(ctx context.Context, now time.Time) ([]dc.Contest, error)
	UpdateStatus(ctx context.Context, id int64, to dc.Status) (bool, error)
	RecordPosting(ctx context.Context, id int64, messageID int) error
	Get(ctx context.Context, id int64) (*dc.Contest, error)
}

// Selector ends a contest and draws its winners exactly once.
type Selector interface {
	SelectWinners(ctx context.Context, contestID int64) ([]dc.Winner, bool, error)
}

// Announcer delivers lifecycle messages. A zero message id means the post
// is delivered later or not at all.
type Announcer interface {
	AnnounceContestStart(ctx context.Context, c *dc.Contest) (int, error)
	AnnounceWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error
}

// Locker provides single-flight across processes. A nil release means the
// lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

// Job is an auxiliary periodic duty with no contest-state interaction.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// TickResult summarizes one reconciliation pass.
type TickResult struct {
	Activated int
	Ended     int
	Failed    int
	Skipped   bool
}

type Scheduler struct {
	registry  Registry
	selector  Selector
	announcer Announcer
	locker    Locker
	interval  time.Duration
	lockTTL   time.Duration
	jobs      []Job
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type Option func(*Scheduler)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Scheduler) { s.locker, s.lockTTL = l, ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithJobs(jobs ...Job) Option {
	return func(s *Scheduler) { s.jobs = append(s.jobs, jobs...) }
}

func New(registry Registry, selector Selector, announcer Announcer, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:  registry,
		selector:  selector,
		announcer: announcer,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.lockTTL <= 0 {
		s.lockTTL = s.interval
	}
	return s
}

// Start runs the tick loop and every job until Stop or ctx is done. The
// first tick fires immediately. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, "lifecycle", s.interval, func(ctx context.Context) error {
			_, err := s.Tick(ctx)
			return err
		})
	}()
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(j Job) {
			defer s.wg.Done()
			s.loop(ctx, j.Name, j.Interval, j.Run)
		}(job)
	}
	logger.Info().Dur("interval", s.interval).Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop cancels the loops and waits for in-flight work to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, run func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Str("job", name).Msg("Scheduled run failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick performs one reconciliation pass. It is safe to call concurrently
// and repeatedly: transitions are compare-and-set and winners are drawn
// at most once, so only the call that caused a transition announces it.
// A contest that fails is left as is and retried on the next tick.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			// Redis down: the idempotent transitions still hold without the lock.
			logger.Warn().Err(err).Msg("Scheduler lock unavailable, ticking without it")
		} else if release == nil {
			res.Skipped = true
			return res, nil
		} else {
			defer release(context.WithoutCancel(ctx))
		}
	}

	now := s.now()
	activatable, err := s.registry.ListActivatable(ctx, now)
	if err != nil {
		return res, err
	}
	for i := range activatable {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if s.activate(ctx, &activatable[i]) {
			res.Activated++
		} else if activatable[i].Status != dc.StatusActive {
			res.Failed++
		}
	}

	endable, err := s.registry.ListEndable(ctx, now)
	if err != nil {
		return res, err
	}
	for i := range endable {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		ok, err := s.End(ctx, endable[i].ID)
		if err != nil {
			res.Failed++
			continue
		}
		if ok {
			res.Ended++
		}
	}

	if res.Activated+res.Ended+res.Failed > 0 {
		logger.Info().
			Int("activated", res.Activated).
			Int("ended", res.Ended).
			Int("failed", res.Failed).
			Msg("Scheduler tick")
	}
	return res, nil
}

// activate reports true only when this call moved the contest to active.
// On a lost race c.Status is set to active so the caller does not count it
// as a failure.
func (s *Scheduler) activate(ctx context.Context, c *dc.Contest) bool {
	changed, err := s.registry.UpdateStatus(ctx, c.ID, dc.StatusActive)
	if err != nil {
		logger.Error().Err(err).Int64("contest_id", c.ID).Msg("Contest activation failed")
		return false
	}
	if !changed {
		c.Status = dc.StatusActive
		return false
	}
	c.Status = dc.StatusActive

	msgID, err := s.announcer.AnnounceContestStart(ctx, c)
	if err != nil {
		logDeliveryFailure(err, c.ID, "contest_start")
		return true
	}
	if msgID > 0 {
		if err := s.registry.RecordPosting(ctx, c.ID, msgID); err != nil {
			logger.Warn().Err(err).Int64("contest_id", c.ID).Msg("Failed to record contest posting")
		}
	}
	return true
}

// End finishes an active contest now and announces the winners. It is the
// path for both scheduled and manual endings, and reports whether this
// call ended the contest.
func (s *Scheduler) End(ctx context.Context, contestID int64) (bool, error) {
	winners, created, err := s.selector.SelectWinners(ctx, contestID)
	if err != nil {
		logger.Error().Err(err).Int64("contest_id", contestID).Msg("Contest ending failed")
		return false, err
	}
	if !created {
		return false, nil
	}

	c, err := s.registry.Get(ctx, contestID)
	if err != nil {
		logger.Warn().Err(err).Int64("contest_id", contestID).Msg("Ended contest not readable for announcement")
		return true, nil
	}
	if err := s.announcer.AnnounceWinners(ctx, c, winners); err != nil {
		logDeliveryFailure(err, contestID, "winners")
	}
	return true, nil
}

func logDeliveryFailure(err error, contestID int64, kind string) {
	logger.Warn().
		Err(err).
		Str("error_code", string(apperrors.ErrCodeNotificationDelivery)).
		Int64("contest_id", contestID).
		Str("announcement", kind).
		Msg("Announcement failed, transition kept")
}
