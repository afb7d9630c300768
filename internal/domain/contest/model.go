package contest

import "time"

// Status represents the lifecycle state of a contest.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// CanTransitionTo enforces pending -> active -> ended, with cancellation
// allowed from any non-terminal state. Staying in place is not a transition.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusEnded || next == StatusCancelled
	}
	return false
}

// EndCondition describes what ends an active contest automatically.
type EndCondition string

const (
	EndByTime     EndCondition = "time"
	EndByCapacity EndCondition = "capacity"
	EndManually   EndCondition = "manual"
)

// Contest is the aggregate owning participants and winners.
type Contest struct {
	ID               int64      `json:"id"`
	OwnerID          int64      `json:"owner_id"`
	ChannelID        int64      `json:"channel_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	ImageFileID      string     `json:"image_file_id,omitempty"`
	ButtonText       string     `json:"button_text"`
	PrizeDescription string     `json:"prize_description,omitempty"`
	WinnersCount     int        `json:"winners_count"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	MaxParticipants  *int       `json:"max_participants,omitempty"`
	Status           Status     `json:"status"`
	ViewCount        int64      `json:"view_count"`
	ParticipantCount int        `json:"participant_count"`
	MessageID        *int       `json:"message_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EndCondition reports which rule ends the contest. EndTime and
// MaxParticipants are mutually exclusive.
func (c *Contest) EndCondition() EndCondition {
	switch {
	case c.EndTime != nil:
		return EndByTime
	case c.MaxParticipants != nil:
		return EndByCapacity
	}
	return EndManually
}

// IsActivatable reports whether a pending contest is due to start.
func (c *Contest) IsActivatable(now time.Time) bool {
	return c.Status == StatusPending && !c.StartTime.After(now)
}

// IsEndable reports whether an active contest has met its end condition.
// count must be the authoritative ledger count.
func (c *Contest) IsEndable(now time.Time, count int) bool {
	if c.Status != StatusActive {
		return false
	}
	switch c.EndCondition() {
	case EndByTime:
		return !c.EndTime.After(now)
	case EndByCapacity:
		return count >= *c.MaxParticipants
	}
	return false
}

// Participant is a ledger entry: one per (contest, user).
type Participant struct {
	ContestID  int64     `json:"contest_id"`
	UserID     int64     `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
	ReferrerID *int64    `json:"referrer_id,omitempty"`
	IsWinner   bool      `json:"is_winner"`
}

// Winner is a selected participant with a 1-based position.
type Winner struct {
	ContestID    int64     `json:"contest_id"`
	UserID       int64     `json:"user_id"`
	Position     int       `json:"position"`
	PrizeClaimed bool      `json:"prize_claimed"`
	AnnouncedAt  time.Time `json:"announced_at"`
}

// WinnerStats aggregates a user's wins across contests.
type WinnerStats struct {
	TotalWins      int `json:"total_wins"`
	FirstPlaceWins int `json:"first_place_wins"`
	ClaimedPrizes  int `json:"claimed_prizes"`
}

// JoinResult is the non-error outcome of a join attempt.
type JoinResult int

const (
	JoinResultJoined JoinResult = iota + 1
	JoinResultAlreadyJoined
)

func (r JoinResult) String() string {
	switch r {
	case JoinResultJoined:
		return "joined"
	case JoinResultAlreadyJoined:
		return "already_joined"
	}
	return "unknown"
}

// CreateParams holds owner-supplied fields for a new contest.
type CreateParams struct {
	OwnerID          int64      `json:"owner_id"`
	ChannelID        int64      `json:"channel_id" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	ImageFileID      string     `json:"image_file_id,omitempty"`
	ButtonText       string     `json:"button_text,omitempty"`
	PrizeDescription string     `json:"prize_description,omitempty"`
	WinnersCount     int        `json:"winners_count" binding:"required"`
	StartTime        time.Time  `json:"start_time" binding:"required"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	MaxParticipants  *int       `json:"max_participants,omitempty"`
}

// Limits are the creation-time caps.
type Limits struct {
	MaxDuration     time.Duration
	MaxWinners      int
	MaxParticipants int
}

// ListFilter narrows admin contest listings. Zero values mean "any".
type ListFilter struct {
	Status  Status
	OwnerID int64
	Query   string
	// OrderBy is "created" (default) or "views".
	OrderBy string
	Limit   int
	Offset  int
}

// StatusCounts maps each status to the number of contests in it.
type StatusCounts map[Status]int
