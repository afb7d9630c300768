package memory

import (
	"context"
	"sort"
	"time"

	"github.com/open-builders/contest-bot/internal/domain/analytics"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	"github.com/open-builders/contest-bot/internal/domain/user"
)

type UserRepository struct{ s *Store }

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Upsert(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	stored := *u
	if existing, ok := r.s.users[u.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
		stored.IsBanned = existing.IsBanned
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.LastSeenAt = now
	r.s.users[u.ID] = &stored
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) sorted() []user.User {
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *UserRepository) List(_ context.Context, limit, offset int) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := r.sorted()
	start, end := page(len(all), limit, offset)
	return all[start:end], nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}

func (r *UserRepository) SetBanned(_ context.Context, id int64, banned bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	u.IsBanned = banned
	return true, nil
}

func (r *UserRepository) ListIDs(_ context.Context, afterID int64, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []int64
	for _, u := range r.sorted() {
		if u.ID <= afterID || u.IsBanned {
			continue
		}
		ids = append(ids, u.ID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

type ChannelRepository struct{ s *Store }

var _ channel.Repository = (*ChannelRepository)(nil)

func (r *ChannelRepository) Upsert(_ context.Context, ch *channel.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *ch
	stored.UpdatedAt = r.s.now()
	r.s.channels[ch.ID] = &stored
	return nil
}

func (r *ChannelRepository) GetByID(_ context.Context, id int64) (*channel.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ch, ok := r.s.channels[id]
	if !ok {
		return nil, nil
	}
	out := *ch
	return &out, nil
}

func (r *ChannelRepository) ListActive(_ context.Context) ([]channel.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []channel.Channel
	for _, ch := range r.s.channels {
		if ch.IsActive {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ChannelRepository) UpdateMemberCount(_ context.Context, id int64, count int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if ch, ok := r.s.channels[id]; ok {
		ch.MemberCount = count
		ch.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *ChannelRepository) ListForceSub(_ context.Context, activeOnly bool) ([]channel.ForceSubChannel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []channel.ForceSubChannel
	for _, ch := range r.s.forceSub {
		if activeOnly && !ch.IsActive {
			continue
		}
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (r *ChannelRepository) UpsertForceSub(_ context.Context, ch *channel.ForceSubChannel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *ch
	r.s.forceSub[ch.ChannelID] = &stored
	return nil
}

func (r *ChannelRepository) DeleteForceSub(_ context.Context, channelID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.forceSub[channelID]; !ok {
		return false, nil
	}
	delete(r.s.forceSub, channelID)
	return true, nil
}

type BroadcastRepository struct{ s *Store }

var _ broadcast.Repository = (*BroadcastRepository)(nil)

func (r *BroadcastRepository) Create(_ context.Context, b *broadcast.Broadcast) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.broadcastSeq++
	b.ID = r.s.broadcastSeq
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.s.now()
	}
	stored := *b
	r.s.broadcasts[b.ID] = &stored
	return nil
}

func (r *BroadcastRepository) GetByID(_ context.Context, id int64) (*broadcast.Broadcast, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.broadcasts[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (r *BroadcastRepository) List(_ context.Context, limit int) ([]broadcast.Broadcast, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]broadcast.Broadcast, 0, len(r.s.broadcasts))
	for _, b := range r.s.broadcasts {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	_, end := page(len(out), limit, 0)
	return out[:end], nil
}

func (r *BroadcastRepository) UpdateProgress(_ context.Context, id int64, status broadcast.Status, sent, failed int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.broadcasts[id]
	if !ok {
		return nil
	}
	b.Status = status
	b.SentCount = sent
	b.FailedCount = failed
	if status == broadcast.StatusCompleted || status == broadcast.StatusFailed {
		now := r.s.now()
		b.CompletedAt = &now
	}
	return nil
}

type AnalyticsRepository struct{ s *Store }

var _ analytics.Repository = (*AnalyticsRepository)(nil)

func (r *AnalyticsRepository) Insert(_ context.Context, e *analytics.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r *AnalyticsRepository) CountSince(_ context.Context, since time.Time) (map[analytics.EventType]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := map[analytics.EventType]int{}
	for _, e := range r.s.events {
		if !e.CreatedAt.Before(since) {
			out[e.Type]++
		}
	}
	return out, nil
}

func (r *AnalyticsRepository) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.events[:0]
	var removed int64
	for _, e := range r.s.events {
		if e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.s.events = kept
	return removed, nil
}
