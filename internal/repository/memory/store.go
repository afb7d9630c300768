// Package memory keeps every repository in process memory. It backs
// STORAGE_DRIVER=memory for local runs and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/open-builders/contest-bot/internal/domain/analytics"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	"github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
)

// Store is shared by all repositories so that multi-entity operations such
// as finishing a contest stay atomic under one lock.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	contestSeq   int64
	contests     map[int64]*contest.Contest
	participants map[int64][]contest.Participant
	winners      map[int64][]contest.Winner

	users map[int64]*user.User

	channels map[int64]*channel.Channel
	forceSub map[int64]*channel.ForceSubChannel

	broadcastSeq int64
	broadcasts   map[int64]*broadcast.Broadcast

	events []analytics.Event
}

func NewStore() *Store {
	return &Store{
		now:          time.Now,
		contests:     make(map[int64]*contest.Contest),
		participants: make(map[int64][]contest.Participant),
		winners:      make(map[int64][]contest.Winner),
		users:        make(map[int64]*user.User),
		channels:     make(map[int64]*channel.Channel),
		forceSub:     make(map[int64]*channel.ForceSubChannel),
		broadcasts:   make(map[int64]*broadcast.Broadcast),
	}
}

// WithClock replaces the time source used for default timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Contests() *ContestRepository { return &ContestRepository{s: s} }
func (s *Store) Participants() *ParticipantRepository { return &ParticipantRepository{s: s} }
func (s *Store) Winners() *WinnerRepository { return &WinnerRepository{s: s} }
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Channels() *ChannelRepository { return &ChannelRepository{s: s} }
func (s *Store) Broadcasts() *BroadcastRepository { return &BroadcastRepository{s: s} }
func (s *Store) Analytics() *AnalyticsRepository { return &AnalyticsRepository{s: s} }

func page(total, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
