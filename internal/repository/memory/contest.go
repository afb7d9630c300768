package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/open-builders/contest-bot/internal/domain/contest"
)

type ContestRepository struct{ s *Store }

var _ contest.Repository = (*ContestRepository)(nil)

func cloneContest(c *contest.Contest) contest.Contest {
	out := *c
	if c.EndTime != nil {
		t := *c.EndTime
		out.EndTime = &t
	}
	if c.MaxParticipants != nil {
		m := *c.MaxParticipants
		out.MaxParticipants = &m
	}
	if c.MessageID != nil {
		m := *c.MessageID
		out.MessageID = &m
	}
	return out
}

func (r *ContestRepository) Create(_ context.Context, c *contest.Contest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.contestSeq++
	c.ID = r.s.contestSeq
	now := r.s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := cloneContest(c)
	r.s.contests[c.ID] = &stored
	return nil
}

func (r *ContestRepository) GetByID(_ context.Context, id int64) (*contest.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[id]
	if !ok {
		return nil, nil
	}
	out := cloneContest(c)
	return &out, nil
}

func (r *ContestRepository) TransitionStatus(_ context.Context, id int64, from []contest.Status, to contest.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if c.Status == st {
			c.Status = to
			c.UpdatedAt = r.s.now()
			return true, nil
		}
	}
	return false, nil
}

func (r *ContestRepository) ListActivatable(_ context.Context, now time.Time) ([]contest.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []contest.Contest
	for _, c := range r.s.contests {
		if c.IsActivatable(now) {
			out = append(out, cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *ContestRepository) ListEndable(_ context.Context, now time.Time) ([]contest.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []contest.Contest
	for id, c := range r.s.contests {
		if c.IsEndable(now, len(r.s.participants[id])) {
			out = append(out, cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ContestRepository) RecordPosting(_ context.Context, id int64, messageID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[id]
	if !ok {
		return contest.ErrNotFound
	}
	c.MessageID = &messageID
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *ContestRepository) IncrementViews(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[id]
	if !ok {
		return contest.ErrNotFound
	}
	c.ViewCount++
	return nil
}

func (r *ContestRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.contests[id]; !ok {
		return false, nil
	}
	delete(r.s.contests, id)
	delete(r.s.participants, id)
	delete(r.s.winners, id)
	return true, nil
}

func (r *ContestRepository) Search(_ context.Context, f contest.ListFilter) ([]contest.Contest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	var out []contest.Contest
	for _, c := range r.s.contests {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.OwnerID != 0 && c.OwnerID != f.OwnerID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) {
			continue
		}
		out = append(out, cloneContest(c))
	}
	if f.OrderBy == "views" {
		sort.Slice(out, func(i, j int) bool {
			if out[i].ViewCount == out[j].ViewCount {
				return out[i].ID > out[j].ID
			}
			return out[i].ViewCount > out[j].ViewCount
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	start, end := page(len(out), f.Limit, f.Offset)
	return out[start:end], nil
}

func (r *ContestRepository) CountByStatus(_ context.Context) (contest.StatusCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := contest.StatusCounts{}
	for _, c := range r.s.contests {
		out[c.Status]++
	}
	return out, nil
}
