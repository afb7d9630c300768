package memory

import (
	"context"
	"sort"

	"github.com/open-builders/contest-bot/internal/domain/contest"
)

type ParticipantRepository struct{ s *Store }

var _ contest.ParticipantRepository = (*ParticipantRepository)(nil)

func (r *ParticipantRepository) Insert(_ context.Context, p *contest.Participant) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[p.ContestID]
	if !ok {
		return false, contest.ErrNotFound
	}
	if c.Status != contest.StatusActive {
		return false, contest.ErrNotActive
	}
	for _, existing := range r.s.participants[p.ContestID] {
		if existing.UserID == p.UserID {
			return false, nil
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.s.now()
	}
	r.s.participants[p.ContestID] = append(r.s.participants[p.ContestID], *p)

	c.ParticipantCount = clampedCount(c, len(r.s.participants[p.ContestID]))
	return true, nil
}

func (r *ParticipantRepository) Count(_ context.Context, contestID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.participants[contestID]), nil
}

func (r *ParticipantRepository) CountAll(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := 0
	for _, ps := range r.s.participants {
		total += len(ps)
	}
	return total, nil
}

func (r *ParticipantRepository) Exists(_ context.Context, contestID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.participants[contestID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// List keeps insertion order, which is join order.
func (r *ParticipantRepository) List(_ context.Context, contestID int64, limit int) ([]contest.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ps := r.s.participants[contestID]
	_, end := page(len(ps), limit, 0)
	out := make([]contest.Participant, end)
	copy(out, ps[:end])
	return out, nil
}

func (r *ParticipantRepository) ListByUser(_ context.Context, userID int64) ([]contest.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []contest.Participant
	for _, ps := range r.s.participants {
		for _, p := range ps {
			if p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (r *ParticipantRepository) Remove(_ context.Context, contestID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ps := r.s.participants[contestID]
	for i, p := range ps {
		if p.UserID != userID {
			continue
		}
		r.s.participants[contestID] = append(ps[:i:i], ps[i+1:]...)
		if c, ok := r.s.contests[contestID]; ok {
			c.ParticipantCount = clampedCount(c, len(r.s.participants[contestID]))
		}
		return true, nil
	}
	return false, nil
}

// clampedCount is the participant_count cache: the ledger size capped at
// max_participants.
func clampedCount(c *contest.Contest, n int) int {
	if c.MaxParticipants != nil && n > *c.MaxParticipants {
		return *c.MaxParticipants
	}
	return n
}
