package memory

import (
	"context"
	"sort"

	"github.com/open-builders/contest-bot/internal/domain/contest"
)

type WinnerRepository struct{ s *Store }

var _ contest.WinnerRepository = (*WinnerRepository)(nil)

func (r *WinnerRepository) Finish(_ context.Context, contestID int64, pick contest.PickFunc) ([]contest.Winner, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.contests[contestID]
	if !ok {
		return nil, false, contest.ErrNotFound
	}
	if existing := r.s.winners[contestID]; len(existing) > 0 {
		return append([]contest.Winner(nil), existing...), false, nil
	}
	switch c.Status {
	case contest.StatusEnded:
		return []contest.Winner{}, false, nil
	case contest.StatusActive:
	default:
		return nil, false, contest.ErrNotActive
	}

	ps := append([]contest.Participant(nil), r.s.participants[contestID]...)
	winners, err := pick(ps)
	if err != nil {
		return nil, false, err
	}

	now := r.s.now()
	isWinner := make(map[int64]bool, len(winners))
	for i := range winners {
		winners[i].ContestID = contestID
		winners[i].AnnouncedAt = now
		isWinner[winners[i].UserID] = true
	}
	stored := r.s.participants[contestID]
	for i := range stored {
		if isWinner[stored[i].UserID] {
			stored[i].IsWinner = true
		}
	}
	r.s.winners[contestID] = append([]contest.Winner(nil), winners...)
	c.Status = contest.StatusEnded
	c.UpdatedAt = now
	return winners, true, nil
}

func (r *WinnerRepository) ListByContest(_ context.Context, contestID int64) ([]contest.Winner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := append([]contest.Winner(nil), r.s.winners[contestID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *WinnerRepository) ListByUser(_ context.Context, userID int64) ([]contest.Winner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []contest.Winner
	for _, ws := range r.s.winners {
		for _, w := range ws {
			if w.UserID == userID {
				out = append(out, w)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnnouncedAt.After(out[j].AnnouncedAt) })
	return out, nil
}

func (r *WinnerRepository) StatsByUser(_ context.Context, userID int64) (contest.WinnerStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var st contest.WinnerStats
	for _, ws := range r.s.winners {
		for _, w := range ws {
			if w.UserID != userID {
				continue
			}
			st.TotalWins++
			if w.Position == 1 {
				st.FirstPlaceWins++
			}
			if w.PrizeClaimed {
				st.ClaimedPrizes++
			}
		}
	}
	return st, nil
}

func (r *WinnerRepository) CountAll(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := 0
	for _, ws := range r.s.winners {
		total += len(ws)
	}
	return total, nil
}

func (r *WinnerRepository) MarkPrizeClaimed(_ context.Context, contestID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ws := r.s.winners[contestID]
	for i := range ws {
		if ws[i].UserID == userID {
			ws[i].PrizeClaimed = true
			return true, nil
		}
	}
	return false, nil
}
